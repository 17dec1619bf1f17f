package cli

import (
	"context"
	stderrors "errors"

	"github.com/eoprod/eoprod/internal/adapters"
	"github.com/eoprod/eoprod/internal/cache"
	"github.com/eoprod/eoprod/internal/config"
	"github.com/eoprod/eoprod/internal/metrics"
	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/internal/registry"
	"github.com/eoprod/eoprod/internal/storage/s3"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/utils"
)

// app carries the components shared by every command.
type app struct {
	cfg      *config.Configuration
	logger   *utils.Logger
	metrics  *metrics.Collector
	cache    *cache.LRUCache
	registry *registry.Registry
	stager   *s3.Stager

	// newClient builds the S3 client on first use.
	newClient func(ctx context.Context, cfg *s3.Config, logger *utils.Logger) (s3.Client, error)
}

// newApp wires logging, metrics, the raster cache and the adapter registry
// from a validated configuration.
func newApp(ctx context.Context, cfg *config.Configuration, logger *utils.Logger) (_ *app, err error) {
	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Metrics.Enabled,
		Port:      cfg.Monitoring.Metrics.Port,
		Path:      cfg.Monitoring.Metrics.Path,
		Namespace: cfg.Monitoring.Metrics.Namespace,
	}, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		newClient: func(ctx context.Context, cfg *s3.Config, logger *utils.Logger) (s3.Client, error) {
			return s3.NewClient(ctx, cfg, logger)
		},
	}

	if cfg.Cache.Enabled {
		size, serr := cfg.CacheBytes()
		if serr != nil {
			return nil, errors.NewError(errors.ErrCodeConfigValidation, "invalid cache size").WithCause(serr)
		}
		a.cache = cache.NewLRUCache(&cache.CacheConfig{
			MaxSize:    size,
			MaxEntries: cfg.Cache.MaxEntries,
			TTL:        cfg.Cache.TTL,
		})
		a.cache.SetRecorder(collector)
		defer func() {
			if err != nil {
				a.cache.Close()
			}
		}()
	}

	a.registry = registry.New(logger, collector)
	if err = adapters.Register(a.registry, adapters.Backends{Cache: a.cache}); err != nil {
		return nil, err
	}
	if err = a.registry.Enable(cfg.Registry.Enabled...); err != nil {
		return nil, err
	}

	if err = collector.Start(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) options() registry.Options {
	return registry.Options{Logger: a.logger, Metrics: a.metrics}
}

// local returns a local path for input, staging s3:// products first.
func (a *app) local(ctx context.Context, input string) (string, error) {
	if !s3.IsURI(input) {
		return input, nil
	}
	if a.stager == nil {
		s3cfg := a.s3Config()
		client, err := a.newClient(ctx, s3cfg, a.logger)
		if err != nil {
			return "", err
		}
		a.stager = s3.NewStager(client, s3cfg, a.logger, a.metrics)
	}
	staged, err := a.stager.Stage(ctx, input)
	if err != nil {
		return "", err
	}
	return staged.Path, nil
}

// open resolves and opens input.
func (a *app) open(ctx context.Context, input string) (*product.Aggregate, error) {
	// Resolution works on names, so a miss is reported before any download.
	entry, ok := a.registry.ResolveEntry(input)
	if !ok {
		return nil, errors.Errorf(errors.ErrCodeAdapterNotFound, "no adapter understands %s", input).
			WithComponent("cli")
	}
	if err := entry.Check(input); err != nil {
		return nil, err
	}
	path, err := a.local(ctx, input)
	if err != nil {
		return nil, err
	}
	a.logger.Debugw("Opening product", "adapter", entry.Name, "path", path)
	return entry.New(a.options()).Open(path)
}

func (a *app) s3Config() *s3.Config {
	c := a.cfg.Storage.S3
	return &s3.Config{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		ForcePathStyle:  c.ForcePathStyle,
		Anonymous:       c.Anonymous,
		MaxRetries:      c.MaxRetries,
		RequestTimeout:  c.RequestTimeout,
		Concurrency:     c.Concurrency,
		StagingDir:      c.StagingDir,
	}
}

// close releases everything newApp and open created.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.stager != nil {
		errs = append(errs, a.stager.Cleanup())
	}
	if a.cache != nil {
		a.metrics.UpdateCacheSize(a.cache.Size())
		a.cache.Close()
	}
	errs = append(errs, a.metrics.Stop(ctx))
	_ = a.logger.Sync()
	return stderrors.Join(errs...)
}
