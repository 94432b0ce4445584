// Package cache provides a best-effort, in-process result cache for
// executed queries.
//
// Entries are keyed by a content-addressed digest of the compiled
// statement and the data source it ran against (see Key). The cache is
// purely an optimization: a miss, an eviction, or a full cache never
// changes query semantics, so callers always fall back to executing the
// statement.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultTTL bounds how long a cached result may be served. Source data
// changes invisibly to the cache, so entries age out rather than being
// invalidated.
const DefaultTTL = 10 * time.Minute

// DefaultSize bounds the number of retained results.
const DefaultSize = 256

// Cache is a fixed-size LRU with per-entry expiry. The zero value is not
// usable; construct with New. A nil *Cache is valid and caches nothing,
// so callers can disable caching by passing nil.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New returns a cache holding up to size entries for at most ttl each.
// Non-positive size or ttl fall back to the defaults.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	return c.lru.Get(key)
}

// Put stores value under key, evicting the oldest entry when full.
func (c *Cache[V]) Put(key string, value V) {
	if c == nil {
		return
	}
	c.lru.Add(key, value)
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len reports the number of live entries.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
