/*
Package cache keeps decoded rasters in memory so repeated reads of the same
NetCDF variable skip decoding.

Entries are whole decoded variables keyed by file and variable name (see Key).
Eviction is least recently used, bounded by total raster bytes and by entry
count. An optional TTL expires entries in the background.

	c := cache.NewLRUCache(&cache.CacheConfig{MaxSize: 256 << 20, MaxEntries: 64})
	defer c.Close()

	key := cache.Key("/data/S3A_OL_1_EFR.SEN3/Oa01_radiance.nc", "Oa01_radiance")
	if r := c.Get(key); r == nil {
		r = decode()
		c.Put(key, r)
	}

Get and Put copy rasters, so callers may modify what they receive.
*/
package cache
