package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// SeedProducts returns the demo catalog used to initialize empty sources.
func SeedProducts() []Product {
	return []Product{
		{ID: 1, Name: "Smartphone Pro X", Description: "5G, 256GB, 108MP camera", PriceCents: 89999, Category: "Smartphones", Stock: 50},
		{ID: 2, Name: `Laptop Ultra 15"`, Description: "Intel i7, 16GB RAM, 512GB SSD", PriceCents: 129999, Category: "Laptops", Stock: 30},
		{ID: 3, Name: "BT Pro Headphones", Description: "Active noise cancelling, 30h battery", PriceCents: 24999, Category: "Audio", Stock: 100},
		{ID: 4, Name: "Smartwatch Fit", Description: "Heart-rate monitor, GPS, water resistant", PriceCents: 19999, Category: "Wearables", Stock: 75},
		{ID: 5, Name: `Tablet Pro 12"`, Description: "M1 chip, 128GB, pencil compatible", PriceCents: 79999, Category: "Tablets", Stock: 40},
		{ID: 6, Name: "4K Pro Camera", Description: "24MP sensor, 4K 60fps recording", PriceCents: 149999, Category: "Cameras", Stock: 20},
		{ID: 7, Name: "Smart Speaker", Description: "Voice assistant, 360 sound", PriceCents: 14999, Category: "Audio", Stock: 120},
		{ID: 8, Name: "Next-Gen Console", Description: "Ray tracing, 1TB SSD, 4K 120fps", PriceCents: 49999, Category: "Gaming", Stock: 60},
	}
}

// MemorySource is an in-memory source of truth with a configurable
// per-query delay standing in for a slow relational database.
type MemorySource struct {
	mu       sync.RWMutex
	products map[int64]Product
	delay    time.Duration
}

// NewMemorySource returns a MemorySource seeded with the demo catalog.
func NewMemorySource(delay time.Duration) *MemorySource {
	products := make(map[int64]Product)
	for _, p := range SeedProducts() {
		products[p.ID] = p
	}
	return &MemorySource{products: products, delay: delay}
}

func (m *MemorySource) Product(ctx context.Context, id int64) (Product, error) {
	if err := m.simulateQuery(ctx); err != nil {
		return Product{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *MemorySource) AllProducts(ctx context.Context) ([]Product, error) {
	if err := m.simulateQuery(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemorySource) ProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	if err := m.simulateQuery(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Product
	for _, p := range m.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Put inserts or replaces a product.
func (m *MemorySource) Put(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// simulateQuery sleeps for the configured delay, honoring cancellation.
func (m *MemorySource) simulateQuery(ctx context.Context) error {
	if m.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
