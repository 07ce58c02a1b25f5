// Package cache provides an in-memory LRU cache whose entries expire after a TTL.
package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// entry wraps the cached value with its expiry
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// LRU is safe for concurrent use.
type LRU[K comparable, V any] struct {
	lru    *lru.Cache[K, *entry[V]]
	ttl    time.Duration
	clock  clockwork.Clock
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewLRU creates a cache holding at most size entries. A zero ttl disables expiry.
func NewLRU[K comparable, V any](size int, ttl time.Duration, clock clockwork.Clock) (*LRU[K, V], error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c, err := lru.New[K, *entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}

	return &LRU[K, V]{
		lru:   c,
		ttl:   ttl,
		clock: clock,
	}, nil
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	if e, ok := c.lru.Get(key); ok {
		if c.ttl == 0 || c.clock.Now().Before(e.expiresAt) {
			c.hits.Add(1)
			return e.value, true
		}
		// Entry expired, remove it
		c.lru.Remove(key)
	}
	c.misses.Add(1)

	var zero V
	return zero, false
}

func (c *LRU[K, V]) Set(key K, value V) {
	c.lru.Add(key, &entry[V]{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	})
}

func (c *LRU[K, V]) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counts since creation
func (c *LRU[K, V]) Stats() map[string]uint64 {
	return map[string]uint64{
		"hits":   c.hits.Load(),
		"misses": c.misses.Load(),
	}
}

// Clear removes all entries
func (c *LRU[K, V]) Clear() {
	c.lru.Purge()
}
