/*
Package s3 stages satellite products held in S3 compatible object storage.

The adapters read products from the local filesystem. A Stager bridges the
gap: given s3://bucket/prefix/<name>.SEN3 (or a file inside it, such as
xfdumanifest.xml) it lists every object below the product container,
downloads them in parallel into a fresh directory under the staging root and
returns the local path to hand to the adapter registry.

	client, err := s3.NewClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	stager := s3.NewStager(client, cfg, logger, collector)
	defer stager.Cleanup()

	staged, err := stager.Stage(ctx, "s3://eodata/Sentinel-3/OLCI/S3A_OL_1_EFR____....SEN3")
	if err != nil {
		return err
	}
	agg, err := reg.Open(staged.Path, opts)

Each Stage call gets its own directory named by a random UUID, so concurrent
stages of the same product never share files. Objects are written through a
temporary file and renamed into place. A failed stage removes its directory.

Object keys are checked before they touch the filesystem: keys containing
".." elements are rejected with PATH_INVALID. S3 failures map onto the
storage error codes OBJECT_NOT_FOUND, BUCKET_NOT_FOUND, ACCESS_DENIED,
NETWORK_ERROR and STORAGE_READ. Downloads failing with NETWORK_ERROR or
STORAGE_READ are retried up to MaxRetries times with exponential backoff
starting at RetryDelay.
*/
package s3
