// Package cache memoizes derived performance views so the read-only
// returns endpoints stay cheap under dashboard polling.
package cache

import (
	"sync"
	"time"
)

type record[T any] struct {
	value    T
	deadline time.Time
}

// InMemory is a thread-safe TTL cache. Expired records are unreadable
// immediately and swept by a janitor once per TTL.
type InMemory[T any] struct {
	mu   sync.RWMutex
	data map[string]record[T]
	ttl  time.Duration
	stop chan struct{}
}

// New creates an in-memory cache with the given TTL.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		data: make(map[string]record[T]),
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the cached value, or false when absent or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.data[key]
	if !ok || time.Now().After(rec.deadline) {
		var zero T
		return zero, false
	}
	return rec.value, true
}

// Set stores a value with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = record[T]{
		value:    value,
		deadline: time.Now().Add(c.ttl),
	}
}

// Delete drops a key. Mutating operations call this so reads after a
// commit never serve the pre-commit view.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
}

// Len reports the number of records, expired ones included until the
// janitor sweeps them.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// Close stops the janitor goroutine.
func (c *InMemory[T]) Close() {
	close(c.stop)
}

func (c *InMemory[T]) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, rec := range c.data {
				if now.After(rec.deadline) {
					delete(c.data, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
