package assets

import (
	"container/list"
	"sync"
)

// DefaultCacheBytes bounds the bytes held by a Manager's cache.
const DefaultCacheBytes = 256 << 20

// Cache keeps recently loaded files up to a byte budget, evicting the
// least recently used entry first.
type Cache struct {
	mu       sync.Mutex
	maxBytes int
	size     int
	order    *list.List // front is most recent
	items    map[string]*list.Element

	hits   int
	misses int
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewCache creates a cache holding at most maxBytes. Files larger than
// the budget are never cached.
func NewCache(maxBytes int) *Cache {
	return &Cache{
		maxBytes: maxBytes,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns a cached file and marks it recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

// Set stores a file, evicting old entries to stay within budget.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	if len(data) > c.maxBytes {
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, data: data})
	c.size += len(data)
	for c.size > c.maxBytes {
		c.remove(c.order.Back())
	}
}

func (c *Cache) remove(el *list.Element) {
	e := c.order.Remove(el).(*cacheEntry)
	delete(c.items, e.key)
	c.size -= len(e.data)
}

// Len returns the number of cached files and their total size.
func (c *Cache) Len() (files, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len(), c.size
}

// Clear drops every entry and resets the statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.size = 0
	c.hits, c.misses = 0, 0
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
