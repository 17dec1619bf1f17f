package s3

import (
	"context"
	stderrors "errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/utils"
)

// Client is the subset of the S3 API used for staging. *s3.Client
// satisfies it.
type Client interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewClient creates an S3 client from cfg. Static credentials are used when
// an access key is configured, otherwise the default AWS credential chain.
func NewClient(ctx context.Context, cfg *Config, logger *utils.Logger) (*s3.Client, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	switch {
	case cfg.Anonymous:
		opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case cfg.AccessKeyID != "":
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "failed to load AWS config").
			WithCause(err).WithComponent("s3")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	logger.OrNop().WithComponent("s3").Debugw("S3 client created",
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.ForcePathStyle,
		"anonymous", cfg.Anonymous)
	return client, nil
}

// translateError maps S3 API failures onto storage error codes.
func translateError(err error, operation, bucket, key string) error {
	var (
		noKey    *s3types.NoSuchKey
		noBucket *s3types.NoSuchBucket
		apiErr   smithy.APIError
		pe       *errors.ProductError
	)
	switch {
	case stderrors.As(err, &pe):
		return err
	case stderrors.As(err, &noKey):
		return errors.Errorf(errors.ErrCodeObjectNotFound, "object not found: s3://%s/%s", bucket, key).
			WithCause(err).WithComponent("s3").WithOperation(operation)
	case stderrors.As(err, &noBucket):
		return errors.Errorf(errors.ErrCodeBucketNotFound, "bucket not found: %s", bucket).
			WithCause(err).WithComponent("s3").WithOperation(operation)
	case stderrors.As(err, &apiErr) && isAccessDenied(apiErr.ErrorCode()):
		return errors.Errorf(errors.ErrCodeAccessDenied, "access denied: s3://%s/%s", bucket, key).
			WithCause(err).WithComponent("s3").WithOperation(operation)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Errorf(errors.ErrCodeNetworkError, "%s interrupted for s3://%s/%s", operation, bucket, key).
			WithCause(err).WithComponent("s3").WithOperation(operation)
	default:
		return errors.Errorf(errors.ErrCodeStorageRead, "%s failed for s3://%s/%s", operation, bucket, key).
			WithCause(err).WithComponent("s3").WithOperation(operation)
	}
}

func isAccessDenied(code string) bool {
	switch code {
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return true
	}
	return false
}
