package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eoprod/eoprod/pkg/types"
)

// raster returns a w x h raster of SizeBytes 9*w*h.
func raster(w, h int, v float64) *types.Raster {
	r := types.NewRaster(w, h)
	for i := range r.Values {
		r.Values[i] = v
	}
	return r
}

type countingRecorder struct {
	mu           sync.Mutex
	hits, misses int
}

func (r *countingRecorder) RecordCacheHit()  { r.mu.Lock(); r.hits++; r.mu.Unlock() }
func (r *countingRecorder) RecordCacheMiss() { r.mu.Lock(); r.misses++; r.mu.Unlock() }

func TestNewLRUCache(t *testing.T) {
	tests := []struct {
		name     string
		config   *CacheConfig
		capacity int64
		entries  int
	}{
		{"nil config uses defaults", nil, 512 * 1024 * 1024, 256},
		{"custom config applied", &CacheConfig{MaxSize: 1024, MaxEntries: 3}, 1024, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLRUCache(tt.config)
			defer c.Close()

			assert.Equal(t, tt.capacity, c.capacity)
			assert.Equal(t, tt.entries, c.config.MaxEntries)
			assert.Equal(t, tt.capacity, c.Stats().Capacity)
			assert.Zero(t, c.Len())
		})
	}
}

func TestLRUCache_PutGet(t *testing.T) {
	c := NewLRUCache(&CacheConfig{MaxSize: 1 << 20})
	defer c.Close()
	rec := &countingRecorder{}
	c.SetRecorder(rec)

	key := Key("/p/Oa01_radiance.nc", "Oa01_radiance")
	assert.Nil(t, c.Get(key))

	c.Put(key, raster(2, 2, 7))
	got := c.Get(key)
	require.NotNil(t, got)
	assert.Equal(t, []float64{7, 7, 7, 7}, got.Values)

	// Returned rasters are copies.
	got.Values[0] = 1
	again := c.Get(key)
	assert.Equal(t, 7.0, again.Values[0])

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	assert.Equal(t, int64(36), stats.Size)
	assert.Equal(t, 2, rec.hits)
	assert.Equal(t, 1, rec.misses)
}

func TestLRUCache_Replace(t *testing.T) {
	c := NewLRUCache(&CacheConfig{MaxSize: 1 << 20})
	defer c.Close()

	c.Put("k", raster(2, 2, 1))
	c.Put("k", raster(3, 3, 2))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(81), c.Size())
	assert.Equal(t, 2.0, c.Get("k").Values[0])
}

func TestLRUCache_EvictBySize(t *testing.T) {
	// Each 2x2 raster is 36 bytes.
	c := NewLRUCache(&CacheConfig{MaxSize: 80})
	defer c.Close()

	c.Put("a", raster(2, 2, 1))
	c.Put("b", raster(2, 2, 2))
	require.NotNil(t, c.Get("a"))
	c.Put("c", raster(2, 2, 3))

	assert.NotNil(t, c.Get("a"))
	assert.Nil(t, c.Get("b"), "least recently used entry should be evicted")
	assert.NotNil(t, c.Get("c"))
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestLRUCache_EvictByCount(t *testing.T) {
	c := NewLRUCache(&CacheConfig{MaxSize: 1 << 20, MaxEntries: 2})
	defer c.Close()

	c.Put("a", raster(1, 1, 1))
	c.Put("b", raster(1, 1, 2))
	c.Put("c", raster(1, 1, 3))

	assert.Equal(t, 2, c.Len())
	assert.Nil(t, c.Get("a"))
}

func TestLRUCache_Oversized(t *testing.T) {
	c := NewLRUCache(&CacheConfig{MaxSize: 10})
	defer c.Close()

	c.Put("big", raster(4, 4, 1))
	assert.Zero(t, c.Len())
	c.Put("nil", nil)
	assert.Zero(t, c.Len())
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	c := NewLRUCache(&CacheConfig{MaxSize: 1 << 20})
	defer c.Close()

	c.Put(Key("/p/a.nc", "x"), raster(1, 1, 1))
	c.Put(Key("/p/a.nc", "y"), raster(1, 1, 1))
	c.Put(Key("/p/b.nc", "x"), raster(1, 1, 1))

	c.Delete("/p/a.nc#")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Size())
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache(&CacheConfig{MaxSize: 1 << 20, TTL: 20 * time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	defer c.Close()

	c.Put("k", raster(1, 1, 1))
	require.NotNil(t, c.Get("k"))

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Nil(t, c.Get("k"))
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache(&CacheConfig{MaxSize: 1 << 20, MaxEntries: 16})
	defer c.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := Key("f", string(rune('a'+(g+i)%20)))
				if c.Get(key) == nil {
					c.Put(key, raster(2, 2, float64(i)))
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}
