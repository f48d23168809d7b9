package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeCacheStore is an in-memory CacheStore that can be forced to fail.
type fakeCacheStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	gets    int
	sets    int
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
	}
}

func (f *fakeCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	data, ok := f.entries[key]
	return data, ok, nil
}

func (f *fakeCacheStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = append([]byte(nil), value...)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCacheStore) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	delete(f.ttls, key)
	return nil
}

type widget struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func TestLookupMissLoadsAndPopulates(t *testing.T) {
	store := newFakeCacheStore()
	c := New(store)

	loads := 0
	load := func(ctx context.Context) (interface{}, error) {
		loads++
		return widget{Name: "gizmo", Price: 499}, nil
	}

	var got widget
	cached, err := c.Lookup(context.Background(), "w:1", time.Minute, &got, load)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if cached {
		t.Error("expected first lookup to miss")
	}
	if loads != 1 {
		t.Errorf("expected 1 source load, got %d", loads)
	}
	if got.Name != "gizmo" || got.Price != 499 {
		t.Errorf("expected loaded widget, got %+v", got)
	}
	if ttl := store.ttls["w:1"]; ttl != time.Minute {
		t.Errorf("expected 1m TTL on populate, got %s", ttl)
	}

	// Second lookup must come from the cache without touching the source.
	var again widget
	cached, err = c.Lookup(context.Background(), "w:1", time.Minute, &again, load)
	if err != nil {
		t.Fatalf("second Lookup failed: %v", err)
	}
	if !cached {
		t.Error("expected second lookup to hit")
	}
	if loads != 1 {
		t.Errorf("expected cached hit, source loaded %d times", loads)
	}
	if again != got {
		t.Errorf("expected hit to equal miss result, got %+v vs %+v", again, got)
	}
}

func TestLookupDegradesOnCacheReadError(t *testing.T) {
	store := newFakeCacheStore()
	store.getErr = errors.New("cache down")
	c := New(store)

	var got widget
	cached, err := c.Lookup(context.Background(), "w:2", time.Minute, &got, func(ctx context.Context) (interface{}, error) {
		return widget{Name: "fallback", Price: 1}, nil
	})
	if err != nil {
		t.Fatalf("expected degraded lookup to succeed, got %v", err)
	}
	if cached {
		t.Error("degraded lookup must not report a cache hit")
	}
	if got.Name != "fallback" {
		t.Errorf("expected source result, got %+v", got)
	}
}

func TestLookupDegradesOnPopulateError(t *testing.T) {
	store := newFakeCacheStore()
	store.setErr = errors.New("cache down")
	c := New(store)

	var got widget
	_, err := c.Lookup(context.Background(), "w:3", time.Minute, &got, func(ctx context.Context) (interface{}, error) {
		return widget{Name: "unstored", Price: 2}, nil
	})
	if err != nil {
		t.Fatalf("expected lookup to serve the value despite populate failure, got %v", err)
	}
	if got.Name != "unstored" {
		t.Errorf("expected source result, got %+v", got)
	}
}

func TestLookupPropagatesSourceError(t *testing.T) {
	store := newFakeCacheStore()
	c := New(store)

	srcErr := errors.New("source down")
	var got widget
	_, err := c.Lookup(context.Background(), "w:4", time.Minute, &got, func(ctx context.Context) (interface{}, error) {
		return nil, srcErr
	})
	if !errors.Is(err, srcErr) {
		t.Errorf("expected source error, got %v", err)
	}
	if store.sets != 0 {
		t.Errorf("expected no populate after source failure, got %d sets", store.sets)
	}
}

func TestLookupTreatsCorruptEntryAsMiss(t *testing.T) {
	store := newFakeCacheStore()
	store.entries["w:5"] = []byte("{not json")
	c := New(store)

	var got widget
	cached, err := c.Lookup(context.Background(), "w:5", time.Minute, &got, func(ctx context.Context) (interface{}, error) {
		return widget{Name: "repaired", Price: 3}, nil
	})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if cached {
		t.Error("corrupt entry must not count as a hit")
	}
	if got.Name != "repaired" {
		t.Errorf("expected reload after corrupt entry, got %+v", got)
	}
	if string(store.entries["w:5"]) == "{not json" {
		t.Error("expected corrupt entry to be overwritten")
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	store := newFakeCacheStore()
	c := New(store)

	loads := 0
	load := func(ctx context.Context) (interface{}, error) {
		loads++
		return widget{Name: "v", Price: int64(loads)}, nil
	}

	var got widget
	c.Lookup(context.Background(), "w:6", time.Minute, &got, load)
	if err := c.Invalidate(context.Background(), "w:6"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	c.Lookup(context.Background(), "w:6", time.Minute, &got, load)

	if loads != 2 {
		t.Errorf("expected reload after invalidation, got %d loads", loads)
	}
	if got.Price != 2 {
		t.Errorf("expected fresh value after invalidation, got %+v", got)
	}
}
