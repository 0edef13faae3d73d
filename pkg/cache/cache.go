// Package cache provides an in-memory LRU cache with hit statistics.
package cache

import (
	"sync"
	"time"
)

// Entry is one cached value with its bookkeeping.
type Entry[K comparable, V any] struct {
	Key        K
	Value      V
	AccessedAt time.Time
	CreatedAt  time.Time
}

// listItem is an item in the doubly-linked list.
type listItem[K comparable, V any] struct {
	Entry[K, V]
	prev *listItem[K, V]
	next *listItem[K, V]
}

// list represents a doubly-linked list.
type list[K comparable, V any] struct {
	head *listItem[K, V] // most recently accessed
	tail *listItem[K, V] // least recently accessed
	len  int
}

// moveToFront moves an item to the front (most recently used).
func (l *list[K, V]) moveToFront(item *listItem[K, V]) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

// unlink removes item from the list without touching the map.
func (l *list[K, V]) unlink(item *listItem[K, V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

// removeBack removes and returns the least recently used item.
func (l *list[K, V]) removeBack() *listItem[K, V] {
	item := l.tail
	if item != nil {
		l.unlink(item)
	}
	return item
}

// pushFront adds an item to the front of the list.
func (l *list[K, V]) pushFront(item *listItem[K, V]) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

// Options configures the LRU cache.
type Options[K comparable, V any] struct {
	// MaxSize is the maximum number of entries.
	// 0 means unlimited.
	MaxSize int

	// OnEvict is called when an entry is evicted.
	OnEvict func(key K, value V)
}

// Stats returns cache statistics.
type Stats struct {
	Length    int   `json:"length"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
}

// HitRate returns the share of lookups that found an entry.
func (s Stats) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// LRU is a size-bounded least-recently-used cache. It is safe for
// concurrent use.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	items   map[K]*listItem[K, V]
	lru     list[K, V]
	maxSize int
	onEvict func(key K, value V)
	hits    int64
	misses  int64
	now     func() time.Time
}

// New creates a new LRU cache with the given options.
func New[K comparable, V any](opts Options[K, V]) *LRU[K, V] {
	return &LRU[K, V]{
		items:   make(map[K]*listItem[K, V]),
		maxSize: opts.MaxSize,
		onEvict: opts.OnEvict,
		now:     time.Now,
	}
}

// Get retrieves a value from the cache.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	item.AccessedAt = c.now()
	c.lru.moveToFront(item)
	return item.Value, true
}

// Set stores a value in the cache, evicting the least recently used
// entries past MaxSize.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if item, exists := c.items[key]; exists {
		item.Value = value
		item.AccessedAt = now
		c.lru.moveToFront(item)
		return
	}

	item := &listItem[K, V]{
		Entry: Entry[K, V]{Key: key, Value: value, AccessedAt: now, CreatedAt: now},
	}
	c.items[key] = item
	c.lru.pushFront(item)
	c.evictIfNeeded()
}

// GetOrCompute returns the cached value for key, or calls compute and
// caches its result when it succeeds. Concurrent misses on the same key may
// both compute.
func (c *LRU[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Delete removes a key from the cache.
func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.lru.unlink(item)
	delete(c.items, key)
	if c.onEvict != nil {
		c.onEvict(key, item.Value)
	}
}

// Clear removes all entries from the cache.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*listItem[K, V])
	c.lru = list[K, V]{}
}

// Len returns the number of entries in the cache.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns the current cache statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Length: len(c.items), HitCount: c.hits, MissCount: c.misses}
}

// evictIfNeeded evicts entries if the cache exceeds its limits.
func (c *LRU[K, V]) evictIfNeeded() {
	for c.maxSize > 0 && c.lru.len > c.maxSize {
		item := c.lru.removeBack()
		if item == nil {
			break
		}
		delete(c.items, item.Key)
		if c.onEvict != nil {
			c.onEvict(item.Key, item.Value)
		}
	}
}
