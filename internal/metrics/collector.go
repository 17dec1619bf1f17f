package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/utils"
)

// Collector records product operations as Prometheus metrics. It implements
// types.MetricsCollector, registry.ResolutionRecorder and cache.Recorder.
type Collector struct {
	mu       sync.Mutex
	config   *Config
	registry *prometheus.Registry
	logger   *utils.Logger

	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	transferBytes     *prometheus.CounterVec
	errorCounter      *prometheus.CounterVec
	resolutions       *prometheus.CounterVec
	cacheRequests     *prometheus.CounterVec
	cacheSize         prometheus.Gauge

	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
	Labels    map[string]string `yaml:"labels"`
}

// DefaultConfig returns an enabled configuration serving /metrics on 9090.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "eoprod",
	}
}

// NoResolution labels a resolution miss.
const NoResolution = "none"

// NewCollector creates a new metrics collector. A disabled configuration
// yields a collector whose methods do nothing.
func NewCollector(config *Config, logger *utils.Logger) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	c := &Collector{
		config: config,
		logger: logger.OrNop().WithComponent("metrics"),
	}
	if !config.Enabled {
		return c, nil
	}

	c.registry = prometheus.NewRegistry()
	c.initMetrics()
	if err := c.registerMetrics(); err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to register metrics").
			WithCause(err).WithComponent("metrics")
	}
	return c, nil
}

// Enabled reports whether the collector records anything.
func (c *Collector) Enabled() bool {
	return c != nil && c.config.Enabled
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	if !c.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Start serves the metrics endpoint in the background until Stop.
func (c *Collector) Start(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server != nil {
		return errors.NewError(errors.ErrCodeInvalidState, "metrics server already started").
			WithComponent("metrics")
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())
	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	srv := c.server
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Errorw("Metrics server failed", "addr", srv.Addr, "error", err)
		}
	}()
	c.logger.Infow("Metrics server started", "addr", srv.Addr, "path", c.config.Path)

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Stop(shutdown)
	}()
	return nil
}

// Stop shuts the metrics server down.
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	srv := c.server
	c.server = nil
	c.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// RecordOperation records one product operation.
func (c *Collector) RecordOperation(operation string, duration time.Duration, success bool) {
	if !c.Enabled() {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	c.operationCounter.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError counts a failure under the category of its error code.
func (c *Collector) RecordError(operation string, err error) {
	if !c.Enabled() || err == nil {
		return
	}
	category := errors.GetCategory(errors.CodeOf(err))
	c.errorCounter.WithLabelValues(operation, string(category)).Inc()
}

// RecordTransfer adds bytes moved by a storage operation.
func (c *Collector) RecordTransfer(operation string, bytes int64) {
	if !c.Enabled() || bytes <= 0 {
		return
	}
	c.transferBytes.WithLabelValues(operation).Add(float64(bytes))
}

// RecordResolution counts an adapter resolution. An empty name is a miss.
func (c *Collector) RecordResolution(adapter string) {
	if !c.Enabled() {
		return
	}
	if adapter == "" {
		adapter = NoResolution
	}
	c.resolutions.WithLabelValues(adapter).Inc()
}

// RecordCacheHit records a raster cache hit
func (c *Collector) RecordCacheHit() {
	if c.Enabled() {
		c.cacheRequests.WithLabelValues("hit").Inc()
	}
}

// RecordCacheMiss records a raster cache miss
func (c *Collector) RecordCacheMiss() {
	if c.Enabled() {
		c.cacheRequests.WithLabelValues("miss").Inc()
	}
}

// UpdateCacheSize sets the raster cache size gauge.
func (c *Collector) UpdateCacheSize(bytes int64) {
	if c.Enabled() {
		c.cacheSize.Set(float64(bytes))
	}
}

func (c *Collector) initMetrics() {
	ns, sub, labels := c.config.Namespace, c.config.Subsystem, prometheus.Labels(c.config.Labels)

	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "operations_total",
			Help:        "Total number of product operations",
			ConstLabels: labels,
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "operation_duration_seconds",
			Help:        "Duration of product operations in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			ConstLabels: labels,
		},
		[]string{"operation"},
	)

	c.transferBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "transfer_bytes_total",
			Help:        "Bytes moved by storage operations",
			ConstLabels: labels,
		},
		[]string{"operation"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "errors_total",
			Help:        "Total number of errors by category",
			ConstLabels: labels,
		},
		[]string{"operation", "category"},
	)

	c.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "resolutions_total",
			Help:        "Adapter resolutions by adapter name",
			ConstLabels: labels,
		},
		[]string{"adapter"},
	)

	c.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_requests_total",
			Help:        "Raster cache lookups",
			ConstLabels: labels,
		},
		[]string{"type"},
	)

	c.cacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_size_bytes",
			Help:        "Current raster cache size in bytes",
			ConstLabels: labels,
		},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.transferBytes,
		c.errorCounter,
		c.resolutions,
		c.cacheRequests,
		c.cacheSize,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// Time measures one operation. Typical use:
//
//	done := c.Time("subset")
//	defer func() { done(err) }()
func (c *Collector) Time(operation string) func(err error) {
	start := time.Now()
	return func(err error) {
		c.RecordOperation(operation, time.Since(start), err == nil)
		c.RecordError(operation, err)
	}
}
