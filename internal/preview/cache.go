package preview

import (
	"container/list"
	"sync"

	"photosort/internal/decode"
	"photosort/internal/metrics"
)

// DefaultCapacity bounds preview memory to roughly
// capacity x average decoded image size.
const DefaultCapacity = 20

type cacheEntry struct {
	path    string
	handle  *decode.ImageHandle
	element *list.Element
}

// Cache is a strict LRU map from absolute path to a decoded
// full-resolution image. Capacity is fixed at construction and counts
// entries, not bytes. Safe for concurrent use; the pixel data inside a
// handle is immutable, so handles are shared without copying.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	lru      *list.List // front = most recently used
	capacity int
}

// NewCache creates a cache holding at most capacity entries. A
// non-positive capacity falls back to DefaultCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[string]*cacheEntry),
		lru:      list.New(),
		capacity: capacity,
	}
}

// Get returns the cached handle for path, promoting it to most recently
// used on a hit.
func (c *Cache) Get(path string) (*decode.ImageHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		metrics.PreviewCacheMisses.Inc()
		return nil, false
	}
	c.lru.MoveToFront(entry.element)
	metrics.PreviewCacheHits.Inc()
	return entry.handle, true
}

// Put inserts or replaces the entry for path and promotes it to most
// recently used. On overflow exactly one entry is evicted: the one with
// the oldest last access.
func (c *Cache) Put(path string, handle *decode.ImageHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[path]; ok {
		entry.handle = handle
		c.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{path: path, handle: handle}
	entry.element = c.lru.PushFront(entry)
	c.entries[path] = entry

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			evicted := oldest.Value.(*cacheEntry)
			delete(c.entries, evicted.path)
			c.lru.Remove(oldest)
			metrics.PreviewCacheEvictions.Inc()
		}
	}
	metrics.PreviewCacheEntries.Set(float64(len(c.entries)))
}

// Remove drops the entry for path if present. Used when a file is moved
// or deleted out from under an open session.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[path]; ok {
		c.lru.Remove(entry.element)
		delete(c.entries, path)
		metrics.PreviewCacheEntries.Set(float64(len(c.entries)))
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the fixed capacity.
func (c *Cache) Capacity() int {
	return c.capacity
}
