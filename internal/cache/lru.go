package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/eoprod/eoprod/pkg/types"
)

// Recorder receives cache hit and miss counts.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// LRUCache is a thread-safe LRU cache of decoded rasters, bounded by the
// total raster size and by entry count.
type LRUCache struct {
	mu          sync.RWMutex
	capacity    int64
	currentSize int64
	items       map[string]*cacheItem
	evictList   *list.List

	config   *CacheConfig
	recorder Recorder
	stop     chan struct{}
	stopOnce sync.Once

	stats types.CacheStats
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	MaxSize         int64         `yaml:"max_size"`
	MaxEntries      int           `yaml:"max_entries"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultCacheConfig returns a 512MB, 256 entry cache without expiry.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		MaxSize:    512 * 1024 * 1024,
		MaxEntries: 256,
	}
}

type cacheItem struct {
	key       string
	raster    *types.Raster
	size      int64
	timestamp time.Time
	element   *list.Element
}

// NewLRUCache creates a new LRU cache. A positive TTL starts a cleanup
// goroutine that runs until Close.
func NewLRUCache(config *CacheConfig) *LRUCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	c := &LRUCache{
		capacity:  config.MaxSize,
		items:     make(map[string]*cacheItem),
		evictList: list.New(),
		config:    config,
		stop:      make(chan struct{}),
		stats: types.CacheStats{
			Capacity: config.MaxSize,
		},
	}
	if config.TTL > 0 {
		go c.cleanupExpired()
	}
	return c
}

// SetRecorder attaches a hit/miss recorder.
func (c *LRUCache) SetRecorder(r Recorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// Key builds the cache key of a variable inside a file.
func Key(file, variable string) string {
	return file + "#" + variable
}

// Get returns a copy of the cached raster, or nil on a miss.
func (c *LRUCache) Get(key string) *types.Raster {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists || c.isExpired(item) {
		if exists {
			c.removeItem(key)
		}
		c.stats.Misses++
		c.updateHitRate()
		if c.recorder != nil {
			c.recorder.RecordCacheMiss()
		}
		return nil
	}

	c.evictList.MoveToFront(item.element)
	c.stats.Hits++
	c.updateHitRate()
	if c.recorder != nil {
		c.recorder.RecordCacheHit()
	}
	return cloneRaster(item.raster)
}

// Put stores a copy of r under key. Rasters larger than the whole cache are
// not stored.
func (c *LRUCache) Put(key string, r *types.Raster) {
	if r == nil {
		return
	}
	size := r.SizeBytes()
	if size > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		c.currentSize -= item.size
		item.raster = cloneRaster(r)
		item.size = size
		item.timestamp = time.Now()
		c.currentSize += size
		c.evictList.MoveToFront(item.element)
		c.evictIfNeeded()
		return
	}

	item := &cacheItem{
		key:       key,
		raster:    cloneRaster(r),
		size:      size,
		timestamp: time.Now(),
	}
	item.element = c.evictList.PushFront(key)
	c.items[key] = item
	c.currentSize += size
	c.evictIfNeeded()
}

// Delete removes every entry whose key starts with prefix.
func (c *LRUCache) Delete(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeItem(key)
		}
	}
}

// Len returns the number of entries.
func (c *LRUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Size returns the current cache size
func (c *LRUCache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentSize
}

// Stats returns cache statistics
func (c *LRUCache) Stats() types.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Size = c.currentSize
	if c.capacity > 0 {
		stats.Utilization = float64(c.currentSize) / float64(c.capacity)
	}
	return stats
}

// Clear clears all items from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Evictions += uint64(len(c.items))
	c.items = make(map[string]*cacheItem)
	c.evictList.Init()
	c.currentSize = 0
}

// Close stops the cleanup goroutine.
func (c *LRUCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *LRUCache) isExpired(item *cacheItem) bool {
	if c.config.TTL <= 0 {
		return false
	}
	return time.Since(item.timestamp) > c.config.TTL
}

func (c *LRUCache) removeItem(key string) {
	item, exists := c.items[key]
	if !exists {
		return
	}
	c.evictList.Remove(item.element)
	delete(c.items, key)
	c.currentSize -= item.size
	c.stats.Evictions++
}

func (c *LRUCache) evictIfNeeded() {
	for c.currentSize > c.capacity && c.evictList.Len() > 0 {
		c.evictOldest()
	}

	if c.config.MaxEntries > 0 {
		for len(c.items) > c.config.MaxEntries && c.evictList.Len() > 0 {
			c.evictOldest()
		}
	}
}

func (c *LRUCache) evictOldest() {
	element := c.evictList.Back()
	if element == nil {
		return
	}
	c.removeItem(element.Value.(string))
}

func (c *LRUCache) updateHitRate() {
	total := c.stats.Hits + c.stats.Misses
	if total > 0 {
		c.stats.HitRate = float64(c.stats.Hits) / float64(total)
	}
}

func (c *LRUCache) cleanupExpired() {
	interval := c.config.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			for key, item := range c.items {
				if c.isExpired(item) {
					c.removeItem(key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func cloneRaster(r *types.Raster) *types.Raster {
	out := &types.Raster{
		Width:  r.Width,
		Height: r.Height,
		Values: make([]float64, len(r.Values)),
		Valid:  make([]bool, len(r.Valid)),
	}
	copy(out.Values, r.Values)
	copy(out.Valid, r.Valid)
	return out
}
