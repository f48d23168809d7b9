package catalog

import (
	"context"
	"strconv"
	"time"

	"trafficpulse/internal/cache"
)

// Cache entry lifetimes, per access pattern: single products change rarely,
// the full listing and category slices turn over faster.
const (
	ProductTTL  = 30 * time.Minute
	ListTTL     = 10 * time.Minute
	CategoryTTL = 20 * time.Minute
)

const (
	productKeyPrefix  = "cache:product:"
	allProductsKey    = "cache:products:all"
	categoryKeyPrefix = "cache:category:"
)

// ProductKey returns the cache key for a single product.
func ProductKey(id int64) string {
	return productKeyPrefix + strconv.FormatInt(id, 10)
}

// CategoryKey returns the cache key for a category listing.
func CategoryKey(category string) string {
	return categoryKeyPrefix + category
}

// Service answers catalog reads cache-first, loading from the source of
// truth on misses. The reads report whether the cache served the value.
// A nil cache turns every read into a direct source read, so the catalog
// keeps working when Redis is down.
type Service struct {
	source Source
	cache  *cache.Cache
}

// NewService binds a source of truth to a cache. cache may be nil.
func NewService(source Source, c *cache.Cache) *Service {
	return &Service{source: source, cache: c}
}

// Product returns one product by id.
func (s *Service) Product(ctx context.Context, id int64) (Product, bool, error) {
	if s.cache == nil {
		p, err := s.source.Product(ctx, id)
		return p, false, err
	}
	var p Product
	cached, err := s.cache.Lookup(ctx, ProductKey(id), ProductTTL, &p, func(ctx context.Context) (interface{}, error) {
		return s.source.Product(ctx, id)
	})
	return p, cached, err
}

// AllProducts returns the full catalog, ordered by id.
func (s *Service) AllProducts(ctx context.Context) ([]Product, bool, error) {
	if s.cache == nil {
		ps, err := s.source.AllProducts(ctx)
		return ps, false, err
	}
	var out []Product
	cached, err := s.cache.Lookup(ctx, allProductsKey, ListTTL, &out, func(ctx context.Context) (interface{}, error) {
		return s.source.AllProducts(ctx)
	})
	return out, cached, err
}

// ProductsByCategory returns the products in one category, ordered by name.
func (s *Service) ProductsByCategory(ctx context.Context, category string) ([]Product, bool, error) {
	if s.cache == nil {
		ps, err := s.source.ProductsByCategory(ctx, category)
		return ps, false, err
	}
	var out []Product
	cached, err := s.cache.Lookup(ctx, CategoryKey(category), CategoryTTL, &out, func(ctx context.Context) (interface{}, error) {
		return s.source.ProductsByCategory(ctx, category)
	})
	return out, cached, err
}

// InvalidateProduct drops the cached entry for one product, plus the
// listings that embed it.
func (s *Service) InvalidateProduct(ctx context.Context, p Product) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, ProductKey(p.ID)); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, CategoryKey(p.Category)); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, allProductsKey)
}

// InvalidateAll drops the cached full listing.
func (s *Service) InvalidateAll(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, allProductsKey)
}
