// Package redis implements the counter and cache store on a single Redis
// client, with a circuit breaker in front of every call.
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis store.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	// Breaker tuning; zero values select the defaults.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Store talks to Redis for per-second counters and cache entries. All calls
// pass through the circuit breaker, so a dead server fails fast instead of
// stalling every tick on a timeout.
type Store struct {
	client  *goredis.Client
	breaker *Breaker
}

// New connects to Redis and pings the server before returning.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)

	threshold := cfg.BreakerThreshold
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	br := NewBreaker(threshold, cooldown)
	br.OnStateChange = func(from, to BreakerState) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	return &Store{client: client, breaker: br}, nil
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker returns the circuit breaker so callers can hook state changes.
func (s *Store) Breaker() *Breaker { return s.breaker }

// Ping probes the server directly, bypassing the breaker.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// IncrByExpire atomically increments key by delta and refreshes its TTL in
// one MULTI/EXEC round trip. Either both land or neither does, so a counter
// never outlives its retention or loses an increment halfway.
func (s *Store) IncrByExpire(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	err := s.breaker.Do(func() error {
		_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			incr = pipe.IncrBy(ctx, key, delta)
			pipe.Expire(ctx, key, ttl)
			return nil
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// MGet fetches the named counters in one round trip. Absent keys are omitted
// from the result; a stored value that does not parse as an integer is an
// error, not a zero.
func (s *Store) MGet(ctx context.Context, keys []string) (map[string]int64, error) {
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}

	var vals []interface{}
	err := s.breaker.Do(func() error {
		var err error
		vals, err = s.client.MGet(ctx, keys...).Result()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis mget %d keys: %w", len(keys), err)
	}

	out := make(map[string]int64, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("redis mget %s: unexpected value type %T", keys[i], v)
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis mget %s: non-integer counter %q", keys[i], raw)
		}
		out[keys[i]] = n
	}
	return out, nil
}

// Get reads a cache entry. A miss returns found=false with no error; misses
// are not failures and never count against the breaker.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	found := false
	err := s.breaker.Do(func() error {
		b, err := s.client.Get(ctx, key).Bytes()
		if err == goredis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = b, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, found, nil
}

// SetEx stores a cache entry with a TTL.
func (s *Store) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.breaker.Do(func() error {
		return s.client.Set(ctx, key, value, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis setex %s: %w", key, err)
	}
	return nil
}

// Del removes a cache entry. Deleting an absent key is a no-op.
func (s *Store) Del(ctx context.Context, key string) error {
	err := s.breaker.Do(func() error {
		return s.client.Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
