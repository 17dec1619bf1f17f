/*
Package metrics exports product operations to Prometheus.

A Collector owns a private prometheus.Registry holding:

	operations_total{operation,status}       status is "success" or "error"
	operation_duration_seconds{operation}
	errors_total{operation,category}         category from the error code
	resolutions_total{adapter}               adapter "none" on a miss
	cache_requests_total{type}               type is "hit" or "miss"
	cache_size_bytes
	transfer_bytes_total{operation}          bytes staged from object storage

Every metric carries the configured namespace and subsystem.

The collector is handed to engines as types.MetricsCollector, to the adapter
registry as registry.ResolutionRecorder and to the raster cache as
cache.Recorder. A collector built from a disabled Config is a no-op, so
callers never check for nil.

	c, err := metrics.NewCollector(&metrics.Config{Enabled: true, Port: 9090, Path: "/metrics"}, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Stop(context.Background())
*/
package metrics
