// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

// Cache is a generic LRU map with a soft limit. When an insertion takes the
// cache over the limit, the least recently used entries are evicted until
// the cache is back at three quarters of the limit, and the eviction
// callback is invoked for each of them.
//
// Cache is not safe for concurrent use. It is owned by the thread that
// records GPU commands.
type Cache[K comparable, V any] struct {
	entries   map[K]*entry[K, V]
	head      *entry[K, V] // most recently used
	tail      *entry[K, V] // least recently used
	softLimit int
	onEvict   func(K, V)

	hits      uint64
	misses    uint64
	evictions uint64
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	prev, next *entry[K, V]
}

// New creates a cache with the given soft limit. A softLimit of 0 means
// unlimited. onEvict may be nil.
func New[K comparable, V any](softLimit int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*entry[K, V]),
		softLimit: softLimit,
		onEvict:   onEvict,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.moveToFront(e)
	return e.value, true
}

// Peek returns the value for key without touching recency or statistics.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrCreate returns the cached value for key, or calls create and stores
// its result. hit reports whether the value was already cached. A create
// error leaves the cache unchanged.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (value V, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	v, err := create()
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.insert(key, v)
	return v, false, nil
}

// Set stores value under key, replacing any previous value without
// calling the eviction callback for it.
func (c *Cache[K, V]) Set(key K, value V) {
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}
	c.insert(key, value)
}

// Delete removes key without calling the eviction callback.
// It reports whether the key was present.
func (c *Cache[K, V]) Delete(key K) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.unlink(e)
	delete(c.entries, key)
	return true
}

// Range calls fn for every entry from most to least recently used,
// stopping early if fn returns false. fn must not modify the cache.
func (c *Cache[K, V]) Range(fn func(K, V) bool) {
	for e := c.head; e != nil; e = e.next {
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Clear evicts every entry, calling the eviction callback for each.
func (c *Cache[K, V]) Clear() {
	for c.tail != nil {
		c.evict(c.tail)
	}
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	s := Stats{
		Len:       len(c.entries),
		Capacity:  c.softLimit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Cache[K, V]) insert(key K, value V) {
	e := &entry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)
	if c.softLimit > 0 && len(c.entries) > c.softLimit {
		target := max(c.softLimit*3/4, 1)
		// The entry just inserted is never evicted by its own insertion.
		for len(c.entries) > target && c.tail != e {
			c.evict(c.tail)
		}
	}
}

func (c *Cache[K, V]) evict(e *entry[K, V]) {
	c.unlink(e)
	delete(c.entries, e.key)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the soft limit, 0 for unlimited.
	Capacity int
	// Hits is the number of successful lookups.
	Hits uint64
	// Misses is the number of failed lookups.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), or 0 before any lookup.
	HitRate float64
	// Evictions is the number of entries removed by the soft limit or Clear.
	Evictions uint64
}
