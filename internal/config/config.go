package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
	"github.com/eoprod/eoprod/pkg/utils"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EOPROD_"

// Configuration represents the complete application configuration
type Configuration struct {
	Global      GlobalConfig      `yaml:"global"`
	Registry    RegistryConfig    `yaml:"registry"`
	Subset      SubsetConfig      `yaml:"subset"`
	Collocation CollocationConfig `yaml:"collocation"`
	Cache       CacheConfig       `yaml:"cache"`
	Storage     StorageConfig     `yaml:"storage"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// RegistryConfig selects the adapters that take part in resolution.
type RegistryConfig struct {
	// Enabled lists adapter names. Empty enables every registered adapter.
	Enabled []string `yaml:"enabled"`
}

// SubsetConfig represents subset engine settings
type SubsetConfig struct {
	ClipToRaster bool `yaml:"clip_to_raster"`
}

// CollocationConfig represents collocation defaults
type CollocationConfig struct {
	Resampling    string `yaml:"resampling"`
	MasterPattern string `yaml:"master_pattern"`
	SlavePattern  string `yaml:"slave_pattern"`
}

// CacheConfig represents the decoded raster cache
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxSize    string        `yaml:"max_size"`
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// StorageConfig represents remote product storage
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config represents S3 staging settings
type S3Config struct {
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	ForcePathStyle  bool          `yaml:"force_path_style"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	SessionToken    string        `yaml:"session_token"`
	Anonymous       bool          `yaml:"anonymous"`
	MaxRetries      int           `yaml:"max_retries"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	StagingDir      string        `yaml:"staging_dir"`
	Concurrency     int           `yaml:"concurrency"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents the Prometheus endpoint
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault creates a new configuration with default values
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "console",
		},
		Subset: SubsetConfig{
			ClipToRaster: true,
		},
		Collocation: CollocationConfig{
			Resampling:    string(types.NearestNeighbour),
			MasterPattern: types.OriginalNamePlaceholder + "_M",
			SlavePattern:  types.OriginalNamePlaceholder + "_S",
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxSize:    "512MB",
			MaxEntries: 256,
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region:         "eu-central-1",
				MaxRetries:     3,
				RequestTimeout: 5 * time.Minute,
				StagingDir:     filepath.Join(os.TempDir(), "eoprod"),
				Concurrency:    8,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   false,
				Port:      9090,
				Path:      "/metrics",
				Namespace: "eoprod",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Errorf(errors.ErrCodeConfigLoad, "failed to read config file %s", filename).
			WithCause(err).WithComponent("config")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Errorf(errors.ErrCodeConfigLoad, "failed to parse config file %s", filename).
			WithCause(err).WithComponent("config")
	}

	return nil
}

// LoadFromEnv loads configuration overrides from EOPROD_* environment variables.
// Malformed numeric or duration values are reported instead of ignored.
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := env("LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := env("LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	// Registry
	if val := env("ADAPTERS"); val != "" {
		c.Registry.Enabled = splitList(val)
	}

	// Subset and collocation
	if val := env("SUBSET_CLIP"); val != "" {
		c.Subset.ClipToRaster = strings.ToLower(val) == "true"
	}
	if val := env("RESAMPLING"); val != "" {
		c.Collocation.Resampling = val
	}

	// Cache settings
	if val := env("CACHE_ENABLED"); val != "" {
		c.Cache.Enabled = strings.ToLower(val) == "true"
	}
	if val := env("CACHE_SIZE"); val != "" {
		c.Cache.MaxSize = val
	}
	if err := envInt("CACHE_MAX_ENTRIES", &c.Cache.MaxEntries); err != nil {
		return err
	}
	if err := envDuration("CACHE_TTL", &c.Cache.TTL); err != nil {
		return err
	}

	// S3 settings
	s3 := &c.Storage.S3
	if val := env("S3_REGION"); val != "" {
		s3.Region = val
	}
	if val := env("S3_ENDPOINT"); val != "" {
		s3.Endpoint = val
	}
	if val := env("S3_FORCE_PATH_STYLE"); val != "" {
		s3.ForcePathStyle = strings.ToLower(val) == "true"
	}
	if val := env("S3_ACCESS_KEY_ID"); val != "" {
		s3.AccessKeyID = val
	}
	if val := env("S3_SECRET_ACCESS_KEY"); val != "" {
		s3.SecretAccessKey = val
	}
	if val := env("S3_SESSION_TOKEN"); val != "" {
		s3.SessionToken = val
	}
	if val := env("S3_ANONYMOUS"); val != "" {
		s3.Anonymous = strings.ToLower(val) == "true"
	}
	if val := env("STAGING_DIR"); val != "" {
		s3.StagingDir = val
	}
	if err := envInt("S3_MAX_RETRIES", &s3.MaxRetries); err != nil {
		return err
	}
	if err := envInt("S3_CONCURRENCY", &s3.Concurrency); err != nil {
		return err
	}
	if err := envDuration("S3_REQUEST_TIMEOUT", &s3.RequestTimeout); err != nil {
		return err
	}

	// Metrics
	if val := env("METRICS_ENABLED"); val != "" {
		c.Monitoring.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if err := envInt("METRICS_PORT", &c.Monitoring.Metrics.Port); err != nil {
		return err
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to marshal config").
			WithCause(err).WithComponent("config")
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to create config directory").
			WithCause(err).WithComponent("config")
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to write config file").
			WithCause(err).WithComponent("config")
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if _, err := utils.ParseLogLevel(c.Global.LogLevel); err != nil {
		return invalid("global.log_level", "invalid log_level: %s (must be one of: DEBUG, INFO, WARN, ERROR)", c.Global.LogLevel)
	}
	switch strings.ToLower(c.Global.LogFormat) {
	case "", "json", "console", "text":
	default:
		return invalid("global.log_format", "invalid log_format: %s", c.Global.LogFormat)
	}

	if _, err := types.ParseResamplingMethod(c.Collocation.Resampling); err != nil {
		return invalid("collocation.resampling", "invalid resampling: %s", c.Collocation.Resampling)
	}
	for field, p := range map[string]string{
		"collocation.master_pattern": c.Collocation.MasterPattern,
		"collocation.slave_pattern":  c.Collocation.SlavePattern,
	} {
		if p != "" && !strings.Contains(p, types.OriginalNamePlaceholder) {
			return invalid(field, "%s must contain %s", field, types.OriginalNamePlaceholder)
		}
	}

	if c.Cache.Enabled {
		if _, err := c.CacheBytes(); err != nil {
			return invalid("cache.max_size", "invalid cache max_size: %s", c.Cache.MaxSize)
		}
		if c.Cache.MaxEntries < 0 {
			return invalid("cache.max_entries", "max_entries must not be negative")
		}
	}
	if c.Cache.TTL < 0 {
		return invalid("cache.ttl", "ttl must not be negative")
	}

	if c.Storage.S3.Concurrency <= 0 {
		return invalid("storage.s3.concurrency", "concurrency must be greater than 0")
	}
	if c.Storage.S3.MaxRetries < 0 {
		return invalid("storage.s3.max_retries", "max_retries must not be negative")
	}
	if (c.Storage.S3.AccessKeyID == "") != (c.Storage.S3.SecretAccessKey == "") {
		return invalid("storage.s3.access_key_id", "access_key_id and secret_access_key must be set together")
	}

	m := c.Monitoring.Metrics
	if m.Enabled {
		if m.Port <= 0 || m.Port > 65535 {
			return invalid("monitoring.metrics.port", "invalid metrics port: %d", m.Port)
		}
		if !strings.HasPrefix(m.Path, "/") {
			return invalid("monitoring.metrics.path", "metrics path must start with /")
		}
		if !metricName.MatchString(m.Namespace) {
			return invalid("monitoring.metrics.namespace", "invalid metrics namespace: %s", m.Namespace)
		}
	}

	return nil
}

// CacheBytes returns the parsed cache size.
func (c *Configuration) CacheBytes() (int64, error) {
	n, err := utils.ParseBytes(c.Cache.MaxSize)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.Errorf(errors.ErrCodeConfigValidation, "cache size must be positive")
	}
	return n, nil
}

// LoggerConfig translates the global section for utils.NewLogger.
func (c *Configuration) LoggerConfig() (utils.LoggerConfig, error) {
	level, err := utils.ParseLogLevel(c.Global.LogLevel)
	if err != nil {
		return utils.LoggerConfig{}, invalid("global.log_level", "invalid log_level: %s", c.Global.LogLevel)
	}
	return utils.LoggerConfig{Level: level, Format: c.Global.LogFormat}, nil
}

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func invalid(field, format string, args ...interface{}) error {
	return errors.Errorf(errors.ErrCodeConfigValidation, format, args...).
		WithComponent("config").WithContext("field", field)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func envInt(key string, dst *int) error {
	val := env(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return errors.Errorf(errors.ErrCodeInvalidConfig, "invalid %s%s: %s", EnvPrefix, key, val).
			WithCause(err).WithComponent("config")
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	val := env(key)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return errors.Errorf(errors.ErrCodeInvalidConfig, "invalid %s%s: %s", EnvPrefix, key, val).
			WithCause(err).WithComponent("config")
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
