// Package entity keeps locally cached collections consistent with the
// backend: pull snapshots seed the caches, push events merge into them,
// and a revision rule arbitrates between the two regardless of arrival
// order.
package entity

import (
	"sync"
	"time"
)

// Cache maps entity ids to their latest known snapshot. For any id
// present, the cached value carries the most recent revision seen by
// either a pull snapshot or a push event — a pull never silently
// overwrites a newer push-supplied state.
type Cache[T any] struct {
	id  func(T) string
	rev func(T) time.Time

	mu      sync.RWMutex
	entries map[string]T
}

// NewCache creates a cache with the given id and revision extractors.
func NewCache[T any](id func(T) string, rev func(T) time.Time) *Cache[T] {
	return &Cache[T]{
		id:      id,
		rev:     rev,
		entries: make(map[string]T),
	}
}

// Apply merges a snapshot under the revision rule: last writer wins by
// revision, not by arrival time. An incoming revision equal to the cached
// one applies ("not older"). An incoming zero revision applies
// unconditionally — the stream does not always carry a marker, a known
// imprecision. Returns whether the cache changed.
func (c *Cache[T]) Apply(e T) bool {
	key := c.id(e)
	incoming := c.rev(e)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok && !incoming.IsZero() {
		if incoming.Before(c.rev(existing)) {
			return false
		}
	}

	c.entries[key] = e

	return true
}

// Get returns the snapshot for the given id.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]

	return e, ok
}

// All returns a copy of every cached snapshot. Order is unspecified.
func (c *Cache[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}

	return out
}

// Len reports the number of cached entities.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
