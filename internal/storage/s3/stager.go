package s3

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/retry"
	"github.com/eoprod/eoprod/pkg/types"
	"github.com/eoprod/eoprod/pkg/utils"
)

// Recorder receives staging outcomes.
type Recorder interface {
	types.MetricsCollector
	RecordTransfer(operation string, bytes int64)
}

// Stager mirrors products stored under an S3 prefix into local directories
// so the file based adapters can open them.
type Stager struct {
	client  Client
	config  *Config
	logger  *utils.Logger
	metrics Recorder
	retry   *retry.Retryer

	mu       sync.Mutex
	sessions []string
}

// NewStager creates a stager. metrics may be nil.
func NewStager(client Client, cfg *Config, logger *utils.Logger, metrics Recorder) *Stager {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	s := &Stager{
		client:  client,
		config:  cfg,
		logger:  logger.OrNop().WithComponent("s3"),
		metrics: metrics,
	}
	rc := retry.DefaultConfig()
	rc.MaxAttempts = max(cfg.MaxRetries, 0) + 1
	rc.InitialDelay = cfg.RetryDelay
	rc.RetryableErrors = []errors.ErrorCode{errors.ErrCodeNetworkError, errors.ErrCodeStorageRead}
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.logger.Warnw("Retrying object download", "attempt", attempt, "delay", delay, "error", err)
	}
	s.retry = retry.New(rc)
	return s
}

// Staged describes one staged product.
type Staged struct {
	// Path is the local equivalent of the staged URI.
	Path string
	// Root is the local product directory.
	Root    string
	Objects int
	Bytes   int64
}

type object struct {
	key  string
	rel  string
	size int64
}

// Stage downloads every object of the product uri refers to and returns the
// local path standing in for uri. uri may name the product container or a
// file inside it.
func (s *Stager) Stage(ctx context.Context, uri string) (st *Staged, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperation("stage", time.Since(start), err == nil)
			if err != nil {
				s.metrics.RecordError("stage", err)
			}
		}
	}()

	u, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if u.Key == "" {
		return nil, errors.Errorf(errors.ErrCodePathInvalid, "no product key in %s", uri).
			WithComponent("s3")
	}
	root, inside := u.ProductRoot()

	objects, err := s.list(ctx, u.Bucket, root)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, errors.Errorf(errors.ErrCodeObjectNotFound, "no objects under %s", URI{Bucket: u.Bucket, Key: root}).
			WithComponent("s3")
	}

	session, err := s.newSession()
	if err != nil {
		return nil, err
	}
	localRoot, err := utils.SecureJoin(session, path.Base(root))
	if err != nil {
		return nil, errors.Errorf(errors.ErrCodePathInvalid, "invalid product name %s", root).
			WithCause(err).WithComponent("s3")
	}

	var expected int64
	for _, obj := range objects {
		expected += obj.size
	}
	log := s.logger.With("bucket", u.Bucket, "product", path.Base(root))
	log.Infow("Staging product", "objects", len(objects), "bytes", utils.FormatBytes(expected), "dir", localRoot)

	var total int64
	var totalMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.concurrency())
	for _, obj := range objects {
		obj := obj
		g.Go(func() error {
			dst := localRoot
			if obj.rel != "" {
				var jerr error
				if dst, jerr = utils.SecureJoin(localRoot, filepath.FromSlash(obj.rel)); jerr != nil {
					return errors.Errorf(errors.ErrCodePathInvalid, "object key %s escapes the product", obj.key).
						WithCause(jerr).WithComponent("s3")
				}
			}
			var n int64
			derr := s.retry.Do(gctx, func(ctx context.Context) error {
				var err error
				n, err = s.download(ctx, u.Bucket, obj.key, dst)
				return err
			})
			if derr != nil {
				return derr
			}
			totalMu.Lock()
			total += n
			totalMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warnw("Staging failed", "error", err)
		_ = os.RemoveAll(session)
		s.forget(session)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordTransfer("stage", total)
	}

	local := localRoot
	if inside != "" {
		if local, err = utils.SecureJoin(localRoot, filepath.FromSlash(inside)); err != nil {
			return nil, errors.Errorf(errors.ErrCodePathInvalid, "invalid path %s", inside).
				WithCause(err).WithComponent("s3")
		}
	}
	log.Infow("Product staged", "bytes", utils.FormatBytes(total), "duration", time.Since(start))
	return &Staged{Path: local, Root: localRoot, Objects: len(objects), Bytes: total}, nil
}

// list returns the objects making up root: the object named root itself or
// everything below root/. Directory markers are skipped.
func (s *Stager) list(ctx context.Context, bucket, root string) ([]object, error) {
	var out []object
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(root),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, translateError(err, "list", bucket, root)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			var rel string
			switch {
			case key == root:
			case strings.HasPrefix(key, root+"/"):
				rel = strings.TrimPrefix(key, root+"/")
				if rel == "" || strings.HasSuffix(rel, "/") {
					continue
				}
				if err := utils.ValidateObjectKey(rel); err != nil {
					return nil, errors.Errorf(errors.ErrCodePathInvalid, "unsafe object key %s", key).
						WithCause(err).WithComponent("s3")
				}
			default:
				continue
			}
			out = append(out, object{key: key, rel: rel, size: aws.ToInt64(o.Size)})
		}
	}
	return out, nil
}

// download writes one object to dst through a temporary file.
func (s *Stager) download(ctx context.Context, bucket, key, dst string) (int64, error) {
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, translateError(err, "get", bucket, key)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return 0, errors.Errorf(errors.ErrCodeStorageRead, "cannot create %s", filepath.Dir(dst)).
			WithCause(err).WithComponent("s3")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".part-*")
	if err != nil {
		return 0, errors.Errorf(errors.ErrCodeStorageRead, "cannot stage %s", key).
			WithCause(err).WithComponent("s3")
	}
	n, err := io.Copy(tmp, out.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, translateError(err, "get", bucket, key)
	}
	s.logger.Debugw("Object staged", "key", key, "bytes", n)
	return n, nil
}

func (s *Stager) newSession() (string, error) {
	dir := filepath.Join(s.config.StagingDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", errors.Errorf(errors.ErrCodeStorageRead, "cannot create staging directory %s", dir).
			WithCause(err).WithComponent("s3")
	}
	s.mu.Lock()
	s.sessions = append(s.sessions, dir)
	s.mu.Unlock()
	return dir, nil
}

func (s *Stager) forget(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.sessions {
		if d == dir {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			return
		}
	}
}

// Cleanup removes every directory this stager created.
func (s *Stager) Cleanup() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = nil
	s.mu.Unlock()

	var first error
	for _, dir := range sessions {
		if err := os.RemoveAll(dir); err != nil && first == nil {
			first = errors.Errorf(errors.ErrCodeStorageRead, "cannot remove %s", dir).
				WithCause(err).WithComponent("s3")
		}
	}
	return first
}
