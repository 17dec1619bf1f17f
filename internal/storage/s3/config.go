package s3

import (
	"os"
	"path/filepath"
	"time"
)

// Config represents S3 staging configuration
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	// Anonymous skips request signing, for public buckets.
	Anonymous bool `yaml:"anonymous"`

	// Performance settings
	// MaxRetries bounds both the SDK request retries and the retries of an
	// object download interrupted mid-transfer.
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Concurrency    int           `yaml:"concurrency"`

	// StagingDir receives one sub-directory per staged product.
	StagingDir string `yaml:"staging_dir"`
}

// NewDefaultConfig returns a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Region:         "eu-central-1",
		MaxRetries:     3,
		RetryDelay:     200 * time.Millisecond,
		RequestTimeout: 5 * time.Minute,
		Concurrency:    8,
		StagingDir:     filepath.Join(os.TempDir(), "eoprod"),
	}
}

func (c *Config) concurrency() int {
	if c.Concurrency <= 0 {
		return 1
	}
	return c.Concurrency
}
