// Package cache holds search responses for a fixed time-to-live.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	// DefaultTTL is how long an entry lives unless overridden.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries bounds the number of cached entries.
	DefaultMaxEntries = 1000
)

// Cache is a concurrent TTL cache keyed by string. Every entry costs 1, so
// the capacity is a count of entries.
type Cache[V any] struct {
	store *ristretto.Cache[string, V]
	ttl   time.Duration
}

// New creates a cache holding up to maxEntries values for ttl each.
// Non-positive arguments fall back to the defaults.
func New[V any](maxEntries int64, ttl time.Duration) (*Cache[V], error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache[V]{store: store, ttl: ttl}, nil
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.store.Get(key)
}

// Set stores value under key. The write is visible to Get once Set returns.
func (c *Cache[V]) Set(key string, value V) bool {
	ok := c.store.SetWithTTL(key, value, 1, c.ttl)
	c.store.Wait()
	return ok
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.store.Clear()
}

// TTL returns the entry lifetime.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Close stops the cache's background goroutines.
func (c *Cache[V]) Close() {
	c.store.Close()
}
