// Package cache provides a small process-local cache bounded by entry count
// and time-to-live. Entries are evicted oldest-inserted first.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is safe for concurrent use. A zero capacity means unbounded; a zero
// TTL means entries never expire.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	onEvict  func(K, V)
	order    *list.List
	items    map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key   K
	value V
	at    time.Time
}

type Option[K comparable, V any] func(*Cache[K, V])

// WithClock replaces time.Now, mostly for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// WithOnEvict registers a hook run for every entry leaving the cache:
// expiry, capacity eviction, replacement, Delete and Clear.
func WithOnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEvict = fn }
}

func New[K comparable, V any](capacity int, ttl time.Duration, opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		order:    list.New(),
		items:    make(map[K]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a live entry. An expired entry is removed on the way out.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.expired(e) {
		c.removeElement(el)
		c.mu.Unlock()
		c.evicted([]*entry[K, V]{e})
		return zero, false
	}
	c.mu.Unlock()
	return e.value, true
}

// View calls fn with a live entry while the cache lock is held, so the
// value cannot be evicted underneath it. fn must not call back into c.
func (c *Cache[K, V]) View(key K, fn func(V)) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	e := el.Value.(*entry[K, V])
	if c.expired(e) {
		c.removeElement(el)
		c.mu.Unlock()
		c.evicted([]*entry[K, V]{e})
		return false
	}
	fn(e.value)
	c.mu.Unlock()
	return true
}

// Set stores value under key as the newest entry, replacing any previous
// value and evicting the oldest entries beyond capacity.
func (c *Cache[K, V]) Set(key K, value V) {
	var gone []*entry[K, V]

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		gone = append(gone, el.Value.(*entry[K, V]))
		c.removeElement(el)
	}
	c.items[key] = c.order.PushBack(&entry[K, V]{key: key, value: value, at: c.now()})

	for c.capacity > 0 && c.order.Len() > c.capacity {
		oldest := c.order.Front()
		gone = append(gone, oldest.Value.(*entry[K, V]))
		c.removeElement(oldest)
	}
	c.mu.Unlock()

	c.evicted(gone)
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	e := el.Value.(*entry[K, V])
	c.removeElement(el)
	c.mu.Unlock()

	c.evicted([]*entry[K, V]{e})
}

// Purge drops every expired entry and returns how many were removed.
func (c *Cache[K, V]) Purge() int {
	var gone []*entry[K, V]

	c.mu.Lock()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if e := el.Value.(*entry[K, V]); c.expired(e) {
			gone = append(gone, e)
			c.removeElement(el)
		}
		el = next
	}
	c.mu.Unlock()

	c.evicted(gone)
	return len(gone)
}

// Clear empties the cache, running the eviction hook for every entry.
func (c *Cache[K, V]) Clear() {
	var gone []*entry[K, V]

	c.mu.Lock()
	for el := c.order.Front(); el != nil; el = el.Next() {
		gone = append(gone, el.Value.(*entry[K, V]))
	}
	c.order.Init()
	c.items = make(map[K]*list.Element)
	c.mu.Unlock()

	c.evicted(gone)
}

// Len counts stored entries, including expired ones not yet purged.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return c.ttl > 0 && c.now().Sub(e.at) >= c.ttl
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}

// evicted runs the hook outside the lock so hooks may call back in.
func (c *Cache[K, V]) evicted(entries []*entry[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range entries {
		c.onEvict(e.key, e.value)
	}
}
