// Package catalog serves the product catalog through the cache-aside read
// path, with a pluggable source of truth behind it.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no product has the requested id.
var ErrNotFound = errors.New("catalog: product not found")

// Product is one catalog entry. Price is stored as int64 cents to avoid
// float drift.
type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Category    string `json:"category"`
	Stock       int64  `json:"stock"`
}

// Source is the catalog's source of truth. It is consulted only on cache
// misses.
type Source interface {
	Product(ctx context.Context, id int64) (Product, error)
	AllProducts(ctx context.Context) ([]Product, error)
	ProductsByCategory(ctx context.Context, category string) ([]Product, error)
}
