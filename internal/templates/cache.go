package templates

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of templates kept when no size is configured
const DefaultCacheSize = 32

// lru is a mutex-guarded least recently used map of template bytes
type lru struct {
	mutex    sync.Mutex
	capacity int
	items    map[string]*entry
	head     *entry // most recently used
	tail     *entry // least recently used
	hits     int64
	misses   int64
}

type entry struct {
	key  string
	data []byte
	prev *entry
	next *entry
}

func newLRU(capacity int) *lru {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}

	c := &lru{
		capacity: capacity,
		items:    make(map[string]*entry),
		head:     &entry{},
		tail:     &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

func (c *lru) get(key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.unlink(e)
	c.pushFront(e)
	c.hits++
	return e.data, true
}

func (c *lru) peek(key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.items[key]; ok {
		return e.data, true
	}
	return nil, false
}

func (c *lru) put(key string, data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.items[key]; ok {
		e.data = data
		c.unlink(e)
		c.pushFront(e)
		return
	}

	e := &entry{key: key, data: data}
	c.pushFront(e)
	c.items[key] = e

	if len(c.items) > c.capacity {
		oldest := c.tail.prev
		c.unlink(oldest)
		delete(c.items, oldest.key)
	}
}

func (c *lru) remove(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.items[key]
	if ok {
		c.unlink(e)
		delete(c.items, key)
	}
	return ok
}

func (c *lru) stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var bytes int64
	for _, e := range c.items {
		bytes += int64(len(e.data))
	}

	return CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     len(c.items),
		Capacity: c.capacity,
		Bytes:    bytes,
	}
}

func (c *lru) pushFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *lru) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

// CacheStats reports template cache usage
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"current_size"`
	Capacity int   `json:"max_capacity"`
	Bytes    int64 `json:"bytes"`
}

// CachedSource keeps recently used templates in memory. Concurrent misses for
// the same name share a single fetch.
type CachedSource struct {
	source Source
	cache  *lru
	group  singleflight.Group
}

// NewCachedSource wraps source with an LRU of the given capacity
func NewCachedSource(source Source, capacity int) *CachedSource {
	return &CachedSource{source: source, cache: newLRU(capacity)}
}

// Open implements Source. Callers must not modify the returned bytes.
func (c *CachedSource) Open(ctx context.Context, name string) ([]byte, error) {
	if data, ok := c.cache.get(name); ok {
		return data, nil
	}

	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		if data, ok := c.cache.peek(name); ok {
			return data, nil
		}
		data, err := c.source.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		c.cache.put(name, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Forget drops name from the cache
func (c *CachedSource) Forget(name string) bool {
	return c.cache.remove(name)
}

// Stats returns cache statistics
func (c *CachedSource) Stats() CacheStats {
	return c.cache.stats()
}
