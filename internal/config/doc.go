/*
Package config holds the eoprod configuration tree.

Values come from three layers, later layers overriding earlier ones:

	defaults (NewDefault)
	YAML file (LoadFromFile)
	EOPROD_* environment variables (LoadFromEnv)

Validate is called once after all layers are applied. Every failure it
reports carries the CONFIG_VALIDATION code and a "field" context entry
naming the offending key.

# Example

	global:
	  log_level: DEBUG
	  log_format: json
	registry:
	  enabled: [olci_l1_efr, slstr_l1_rbt]
	collocation:
	  resampling: bilinear_interpolation
	  master_pattern: ${ORIGINAL_NAME}_M
	cache:
	  enabled: true
	  max_size: 1GB
	storage:
	  s3:
	    region: eu-central-1
	    endpoint: https://eodata.example.org
	    force_path_style: true
	    concurrency: 16
	monitoring:
	  metrics:
	    enabled: true
	    port: 9090

# Environment

	EOPROD_LOG_LEVEL, EOPROD_LOG_FORMAT
	EOPROD_ADAPTERS              comma separated adapter names
	EOPROD_SUBSET_CLIP, EOPROD_RESAMPLING
	EOPROD_CACHE_ENABLED, EOPROD_CACHE_SIZE, EOPROD_CACHE_MAX_ENTRIES, EOPROD_CACHE_TTL
	EOPROD_S3_REGION, EOPROD_S3_ENDPOINT, EOPROD_S3_FORCE_PATH_STYLE
	EOPROD_S3_ACCESS_KEY_ID, EOPROD_S3_SECRET_ACCESS_KEY, EOPROD_S3_SESSION_TOKEN
	EOPROD_S3_ANONYMOUS
	EOPROD_S3_MAX_RETRIES, EOPROD_S3_CONCURRENCY, EOPROD_S3_REQUEST_TIMEOUT
	EOPROD_STAGING_DIR
	EOPROD_METRICS_ENABLED, EOPROD_METRICS_PORT
*/
package config
