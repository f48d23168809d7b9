// Package cache implements the cache-aside read path: check the cache
// first, fall back to the source of truth on a miss, repopulate, return.
// The cache is never the source of truth and the caller always gets an
// answer when the source is healthy, even with the cache down.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trafficpulse/internal/model"
)

// Cache wraps a CacheStore with the cache-aside protocol.
type Cache struct {
	store model.CacheStore
}

// New returns a Cache over the given store.
func New(store model.CacheStore) *Cache {
	return &Cache{store: store}
}

// Lookup fills dest from the cache entry at key and reports whether the
// cache served it. On a miss it calls load, stores the JSON-encoded result
// with ttl, and fills dest from that same encoding, so a later hit decodes
// to exactly what the miss returned. Cache read and populate errors degrade
// to the source; only a load failure is returned to the caller.
func (c *Cache) Lookup(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func(ctx context.Context) (interface{}, error)) (bool, error) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		log.Printf("[cache] read %s failed, falling back to source: %v", key, err)
	} else if found {
		if err := json.Unmarshal(data, dest); err == nil {
			return true, nil
		}
		log.Printf("[cache] corrupt entry at %s, falling back to source", key)
	}

	v, err := load(ctx)
	if err != nil {
		return false, err
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := c.store.SetEx(ctx, key, encoded, ttl); err != nil {
		log.Printf("[cache] populate %s failed: %v", key, err)
	}

	return false, json.Unmarshal(encoded, dest)
}

// Invalidate removes the entry at key so the next Lookup reloads it.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Del(ctx, key); err != nil {
		return fmt.Errorf("cache: invalidate %s: %w", key, err)
	}
	return nil
}
