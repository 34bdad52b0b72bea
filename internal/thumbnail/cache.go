package thumbnail

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

const (
	// DefaultCapacity is the number of thumbnails kept before the cache is reset
	DefaultCapacity = 500
	// DefaultSize is the bounding box edge in pixels
	DefaultSize = 200

	keyPrefixLength = 100
)

// Stats is a snapshot of cache counters
type Stats struct {
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Clears   uint64 `json:"clears"`
	Failures uint64 `json:"failures"`
}

// Observer receives cache events, typically to update metrics
type Observer interface {
	ThumbnailHit()
	ThumbnailMiss()
	ThumbnailCleared(entries int)
}

// Cache memoizes thumbnails of inlined images.
// When full it drops every entry at once instead of evicting one.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]string
	capacity  int
	size      int
	optimizer Optimizer
	observer  Observer

	hits, misses, clears, failures uint64
}

// NewCache creates a thumbnail cache. Non-positive capacity or size fall back to the defaults.
func NewCache(optimizer Optimizer, capacity, size int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{
		entries:   make(map[string]string, capacity),
		capacity:  capacity,
		size:      size,
		optimizer: optimizer,
	}
}

// SetObserver attaches an event observer
func (c *Cache) SetObserver(o Observer) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// Thumbnail returns a thumbnail for image.
// URLs pass through untouched; if compression fails the original payload is
// returned and nothing is cached.
func (c *Cache) Thumbnail(image string) string {
	if image == "" || c.optimizer.IsURL(image) {
		return image
	}

	key := cacheKey(image)

	c.mu.Lock()
	if thumb, ok := c.entries[key]; ok {
		c.hits++
		obs := c.observer
		c.mu.Unlock()
		if obs != nil {
			obs.ThumbnailHit()
		}
		return thumb
	}
	c.misses++
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		obs.ThumbnailMiss()
	}

	// Compress outside the lock; concurrent misses on one key produce the same value
	thumb, err := c.optimizer.CreateThumbnail(image, c.size)
	if err != nil {
		c.mu.Lock()
		c.failures++
		c.mu.Unlock()
		return image
	}

	cleared := 0
	c.mu.Lock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		cleared = len(c.entries)
		c.entries = make(map[string]string, c.capacity)
		c.clears++
	}
	c.entries[key] = thumb
	c.mu.Unlock()

	if cleared > 0 && obs != nil {
		obs.ThumbnailCleared(cleared)
	}
	return thumb
}

// Len returns the number of cached thumbnails
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:  len(c.entries),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
		Clears:   c.clears,
		Failures: c.failures,
	}
}

// cacheKey hashes the first 100 characters of the payload
func cacheKey(image string) string {
	prefix := image
	if len(prefix) > keyPrefixLength {
		prefix = prefix[:keyPrefixLength]
	}
	sum := sha256.Sum256([]byte(prefix))
	return hex.EncodeToString(sum[:])
}
