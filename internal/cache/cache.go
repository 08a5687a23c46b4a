// Package cache implements the bounded in-memory LRU tier for session
// records. The cache is purely derived state: losing it never loses data,
// and eviction never writes to disk.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/wallon-qodo/multi-term-sub001/internal/infrastructure/monitoring"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
)

// EvictFunc is invoked after an entry is evicted under capacity pressure.
// It runs outside the cache lock.
type EvictFunc func(id string, rec *types.SessionRecord)

type entry struct {
	id         string
	rec        *types.SessionRecord
	lastAccess time.Time
}

// Cache is a bounded LRU map from session ID to record. A single mutex
// guards the map and recency order; it is never held across I/O or the
// eviction callback.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used

	hits      uint64
	misses    uint64
	evictions uint64

	onEvict EvictFunc
	metrics *monitoring.Metrics
}

// New creates a cache holding at most capacity records. Capacity below 1 is
// clamped to 1.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// WithEvictFunc registers the eviction callback.
func (c *Cache) WithEvictFunc(fn EvictFunc) *Cache {
	c.onEvict = fn
	return c
}

// WithMetrics adds metrics tracking to the cache.
func (c *Cache) WithMetrics(m *monitoring.Metrics) *Cache {
	c.metrics = m
	return c
}

// Get returns the cached record and marks it most recently used.
func (c *Cache) Get(id string) (*types.SessionRecord, bool) {
	c.mu.Lock()
	el, ok := c.items[id]
	if !ok {
		c.misses++
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordCacheMiss()
		}
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	ent := el.Value.(*entry)
	ent.lastAccess = time.Now()
	rec := ent.rec
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}
	return rec, true
}

// Put inserts or updates a record as most recently used, evicting the least
// recently used entry if capacity is exceeded.
func (c *Cache) Put(id string, rec *types.SessionRecord) {
	var evictedID string
	var evictedRec *types.SessionRecord
	evicted := false

	c.mu.Lock()
	if el, ok := c.items[id]; ok {
		c.order.MoveToFront(el)
		ent := el.Value.(*entry)
		ent.rec = rec
		ent.lastAccess = time.Now()
	} else {
		el := c.order.PushFront(&entry{id: id, rec: rec, lastAccess: time.Now()})
		c.items[id] = el
		if c.order.Len() > c.capacity {
			// Back of the list is least recently accessed; list order
			// breaks insertion-order ties for us.
			oldest := c.order.Back()
			ent := oldest.Value.(*entry)
			c.order.Remove(oldest)
			delete(c.items, ent.id)
			c.evictions++
			evictedID, evictedRec, evicted = ent.id, ent.rec, true
		}
	}
	size := c.order.Len()
	c.mu.Unlock()

	if c.metrics != nil {
		if evicted {
			c.metrics.RecordEviction(size)
		} else {
			c.metrics.SetCacheSize(size)
		}
	}
	if evicted && c.onEvict != nil {
		c.onEvict(evictedID, evictedRec)
	}
}

// Remove drops an entry without invoking the eviction callback.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	el, ok := c.items[id]
	if ok {
		c.order.Remove(el)
		delete(c.items, id)
	}
	size := c.order.Len()
	c.mu.Unlock()

	if ok && c.metrics != nil {
		c.metrics.SetCacheSize(size)
	}
	return ok
}

// Len returns the current number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return types.CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		HitRate:   rate,
		Size:      c.order.Len(),
		Capacity:  c.capacity,
		Evictions: c.evictions,
	}
}
