package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity is the number of rendered entries kept before eviction.
const DefaultCapacity = 256

// CachedRender represents one rendered message body
type CachedRender struct {
	Output    string
	Timestamp time.Time
}

// GenerateCacheKey generates a cache key from the render width and content
func GenerateCacheKey(width int, content string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:", width)
	h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// RenderCache holds markdown output for sealed replies so a redraw only
// renders the message still streaming.
type RenderCache struct {
	mu       sync.Mutex
	entries  map[string]CachedRender
	capacity int
	now      func() time.Time
}

// New creates a RenderCache. A capacity <= 0 uses DefaultCapacity.
func New(capacity int) *RenderCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RenderCache{
		entries:  make(map[string]CachedRender),
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the cached output for width and content.
func (c *RenderCache) Get(width int, content string) (string, bool) {
	key := GenerateCacheKey(width, content)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	e.Timestamp = c.now()
	c.entries[key] = e
	return e.Output, true
}

// Put stores output, evicting the least recently used entry when full.
func (c *RenderCache) Put(width int, content, output string) {
	key := GenerateCacheKey(width, content)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		c.evictLocked()
	}
	c.entries[key] = CachedRender{Output: output, Timestamp: c.now()}
}

// Len returns the number of cached entries.
func (c *RenderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *RenderCache) evictLocked() {
	var oldest string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldest == "" || e.Timestamp.Before(oldestAt) {
			oldest, oldestAt = k, e.Timestamp
		}
	}
	delete(c.entries, oldest)
}
