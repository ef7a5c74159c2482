// Package cache provides the time-bounded in-memory caches used by the
// recommendation engine.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// TTLCache is a concurrency-safe map whose entries are treated as absent once
// they are TTL old. Expired entries are removed lazily by Get, or in bulk by
// Sweep.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *TTLCache[K, V]) WithClock(now func() time.Time) *TTLCache[K, V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

func (c *TTLCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if present and younger than the TTL.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	if now.Sub(e.createdAt) >= c.ttl {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, ok := c.entries[key]; ok && now.Sub(cur.createdAt) >= c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return e.value, true
}

// Set stores value under key, overwriting any existing entry.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, createdAt: c.now()}
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeleteFunc removes every entry whose key satisfies match and returns the
// number removed.
func (c *TTLCache[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Sweep deletes expired entries and returns how many were removed.
func (c *TTLCache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len counts stored entries, including expired ones not yet swept.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Run sweeps the cache every interval until ctx is cancelled.
func (c *TTLCache[K, V]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// UserPair is an order-independent key for a pair of users.
type UserPair struct {
	Low  uuid.UUID
	High uuid.UUID
}

// PairKey builds the key for (a, b); PairKey(a, b) == PairKey(b, a).
func PairKey(a, b uuid.UUID) UserPair {
	if compareUUID(a, b) > 0 {
		a, b = b, a
	}
	return UserPair{Low: a, High: b}
}

// Contains reports whether id is one side of the pair.
func (p UserPair) Contains(id uuid.UUID) bool {
	return p.Low == id || p.High == id
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
