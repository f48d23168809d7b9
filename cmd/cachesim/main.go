package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trafficpulse/config"
	"trafficpulse/internal/cache"
	"trafficpulse/internal/catalog"
	"trafficpulse/internal/logger"
	redisstore "trafficpulse/internal/store/redis"
	sqlitestore "trafficpulse/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[cachesim] starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[cachesim] config: %v", err)
	}

	slogger := logger.Init("cachesim", cfg.LogLevel)
	slogger.Info("configuration loaded",
		slog.String("backend", cfg.CacheBackend),
		slog.Int("lookups", cfg.CacheLookups),
		slog.Int("source_delay_ms", cfg.SourceDelayMs),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[cachesim] interrupted, stopping...")
		cancel()
	}()

	// ---- Redis cache layer (optional: reads degrade to the source) ----
	var productCache *cache.Cache
	store, err := redisstore.New(redisstore.Config{
		Addr:             cfg.RedisAddr,
		Password:         cfg.RedisPassword,
		DB:               cfg.RedisDB,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
	})
	if err != nil {
		log.Printf("[cachesim] WARNING: redis unavailable, running without cache: %v", err)
	} else {
		defer store.Close()
		productCache = cache.New(store)
	}

	// ---- Product source ----
	var source catalog.Source
	var sqliteCat *sqlitestore.Catalog

	switch cfg.CacheBackend {
	case "sqlite":
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
		sqliteCat, err = sqlitestore.New(sqlitestore.Config{Path: cfg.SQLitePath})
		if err != nil {
			log.Fatalf("[cachesim] sqlite init failed: %v", err)
		}
		defer sqliteCat.Close()
		source = sqliteCat
	default:
		source = catalog.NewMemorySource(time.Duration(cfg.SourceDelayMs) * time.Millisecond)
	}

	svc := catalog.NewService(source, productCache)

	log.Printf("[cachesim] running %d lookups against the %s backend (source delay %dms)",
		cfg.CacheLookups, cfg.CacheBackend, cfg.SourceDelayMs)

	// Drop leftovers from earlier runs so the first lookups hit the source.
	if err := svc.InvalidateAll(ctx); err != nil {
		log.Printf("[cachesim] warmup invalidate failed: %v", err)
	}
	for _, p := range catalog.SeedProducts() {
		if err := svc.InvalidateProduct(ctx, p); err != nil {
			log.Printf("[cachesim] warmup invalidate failed: %v", err)
			break
		}
	}

	categories := distinctCategories(catalog.SeedProducts())
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var done int
	var total time.Duration
	start := time.Now()

	for i := 0; i < cfg.CacheLookups && ctx.Err() == nil; i++ {
		took, err := randomLookup(ctx, svc, sqliteCat, rng, categories)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			log.Printf("[cachesim] lookup failed: %v", err)
			continue
		}
		done++
		total += took

		// Spread lookups out so repeated keys land inside their TTL.
		pause := time.Duration(100+rng.Intn(300)) * time.Millisecond
		select {
		case <-ctx.Done():
		case <-time.After(pause):
		}
	}

	if done > 0 {
		log.Printf("[cachesim] finished: %d lookups in %s (avg %.1fms per lookup)",
			done, time.Since(start).Round(time.Millisecond),
			float64(total.Microseconds())/float64(done)/1000)
	}
	slogger.Info("simulation complete",
		slog.Int("lookups", done),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// randomLookup exercises one of the catalog read paths, or occasionally a
// stock write followed by cache invalidation.
func randomLookup(ctx context.Context, svc *catalog.Service, sqliteCat *sqlitestore.Catalog, rng *rand.Rand, categories []string) (time.Duration, error) {
	roll := rng.Intn(10)
	switch {
	case roll < 6:
		id := int64(1 + rng.Intn(len(catalog.SeedProducts())))
		start := time.Now()
		p, cached, err := svc.Product(ctx, id)
		took := time.Since(start)
		if err != nil {
			return 0, err
		}
		log.Printf("[cachesim] product %d (%s) via %s in %s", p.ID, p.Name, sourceName(cached), fmtLatency(took))
		return took, nil

	case roll < 8:
		cat := categories[rng.Intn(len(categories))]
		start := time.Now()
		ps, cached, err := svc.ProductsByCategory(ctx, cat)
		took := time.Since(start)
		if err != nil {
			return 0, err
		}
		log.Printf("[cachesim] category %s: %d products via %s in %s", cat, len(ps), sourceName(cached), fmtLatency(took))
		return took, nil

	case roll == 8:
		start := time.Now()
		ps, cached, err := svc.AllProducts(ctx)
		took := time.Since(start)
		if err != nil {
			return 0, err
		}
		log.Printf("[cachesim] all products: %d via %s in %s", len(ps), sourceName(cached), fmtLatency(took))
		return took, nil

	default:
		id := int64(1 + rng.Intn(len(catalog.SeedProducts())))
		start := time.Now()
		p, _, err := svc.Product(ctx, id)
		if err != nil {
			return 0, err
		}
		if sqliteCat != nil {
			if err := sqliteCat.AdjustStock(ctx, p.ID, -1); err != nil {
				return 0, err
			}
		}
		if err := svc.InvalidateProduct(ctx, p); err != nil {
			return 0, err
		}
		took := time.Since(start)
		log.Printf("[cachesim] updated product %d (%s), cache invalidated (%s)", p.ID, p.Name, fmtLatency(took))
		return took, nil
	}
}

func distinctCategories(products []catalog.Product) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

func sourceName(cached bool) string {
	if cached {
		return "cache"
	}
	return "source"
}

func fmtLatency(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(10 * time.Microsecond).String()
	}
	return d.Round(100 * time.Microsecond).String()
}
