// Package cache provides the time-bounded key/value store injected into the
// station, routing and geocoding services.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bluele/gcache"
)

// DefaultSize is the number of entries kept before LRU eviction.
const DefaultSize = 10000

// Store is a key/value store with per-entry expiry.
type Store interface {
	// Get returns the live value for key.
	Get(key string) (any, bool)
	// Set stores value under key for ttl.
	Set(key string, value any, ttl time.Duration)
	// Delete removes key.
	Delete(key string)
	// Purge removes every entry.
	Purge()
	// Len returns the number of live entries.
	Len() int
}

// Stats are lookup counters of a store.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// GStore is a Store backed by an LRU gcache.
type GStore struct {
	c gcache.Cache
}

// NewStore creates an LRU store holding up to size entries.
func NewStore(size int) *GStore {
	if size <= 0 {
		size = DefaultSize
	}
	return &GStore{c: gcache.New(size).LRU().Build()}
}

// Get returns the live value for key.
func (s *GStore) Get(key string) (any, bool) {
	v, err := s.c.Get(key)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (s *GStore) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	_ = s.c.SetWithExpire(key, value, ttl)
}

// Delete removes key.
func (s *GStore) Delete(key string) {
	s.c.Remove(key)
}

// Purge removes every entry.
func (s *GStore) Purge() {
	s.c.Purge()
}

// Len returns the number of unexpired entries.
func (s *GStore) Len() int {
	return s.c.Len(true)
}

// Stats returns lookup counters.
func (s *GStore) Stats() Stats {
	return Stats{
		Entries: s.Len(),
		Hits:    s.c.HitCount(),
		Misses:  s.c.MissCount(),
		HitRate: s.c.HitRate(),
	}
}

// ErrUnexpectedType is returned by Lookup when the cached value has another type.
var ErrUnexpectedType = errors.New("cached value has unexpected type")

// Lookup returns the typed value stored under key.
func Lookup[T any](store Store, key string) (T, error) {
	var zero T
	if store == nil {
		return zero, gcache.KeyNotFoundError
	}
	v, ok := store.Get(key)
	if !ok {
		return zero, gcache.KeyNotFoundError
	}
	t, ok := v.(T)
	if !ok {
		return zero, ErrUnexpectedType
	}
	return t, nil
}

// Fetch returns the cached value for key or calls load and caches its result
// for ttl. Failed loads are not cached. The boolean reports a cache hit.
// A nil store disables caching.
func Fetch[T any](ctx context.Context, store Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	if v, err := Lookup[T](store, key); err == nil {
		return v, true, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, false, err
	}
	if store != nil {
		store.Set(key, v, ttl)
	}
	return v, false, nil
}
