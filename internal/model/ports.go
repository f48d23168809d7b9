package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the generator, the candle builder and the
// read-through cache from the concrete store (Redis). Tests substitute
// in-memory fakes.

// CounterWriter publishes per-second request counters.
type CounterWriter interface {
	// IncrByExpire atomically adds delta to the counter at key and
	// refreshes its TTL, in a single store round trip. Returns the new
	// counter value. The increment must be store-side atomic so that
	// concurrent generators compose.
	IncrByExpire(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// CounterReader reads per-second request counters.
type CounterReader interface {
	// MGet returns the values of the keys that exist. Absent keys are
	// omitted from the map; callers treat them as zero. A failed call
	// returns a nil map and the error.
	MGet(ctx context.Context, keys []string) (map[string]int64, error)
}

// CacheStore is the volatile key-value layer behind the read-through cache.
// It is never the source of truth; every method may fail without the
// caller losing data.
type CacheStore interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetEx stores value under key with the given TTL (SETEX semantics).
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key; deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
}
