// Package config loads pipeline configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"trafficpulse/internal/logger"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string
	LogLevel      slog.Level

	// Load generator signal: value = amplitude*sin(t) + mean + N(mean, variance)
	SampleAmplitude float64
	SampleMean      float64
	SampleVariance  float64
	CounterTTL      time.Duration

	// Candle aggregation
	CandleInterval int64
	MaxCandles     int

	// Redis circuit breaker
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// Cache simulator
	CacheBackend  string // "memory" or "sqlite"
	CacheLookups  int
	SourceDelayMs int
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is honored when present.
// Validation failures are collected and returned as a single error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.SQLitePath = getEnv("SQLITE_PATH", "data/catalog.db")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")
	cfg.GatewayAddr = getEnv("GATEWAY_ADDR", ":8080")

	var err error
	cfg.RedisDB, err = envInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg.LogLevel, err = logger.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg.SampleAmplitude, err = envFloat("SAMPLE_AMPLITUDE", 5)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.SampleMean, err = envFloat("SAMPLE_MEAN", 10)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.SampleVariance, err = envFloat("SAMPLE_VARIANCE", 2)
	if err != nil {
		errs = append(errs, err.Error())
	} else if cfg.SampleVariance < 0 {
		errs = append(errs, "SAMPLE_VARIANCE cannot be negative")
	}

	ttlSeconds, err := envInt("COUNTER_TTL_SECONDS", 120)
	if err != nil {
		errs = append(errs, err.Error())
	} else if ttlSeconds <= 0 {
		errs = append(errs, "COUNTER_TTL_SECONDS must be positive")
	}
	cfg.CounterTTL = time.Duration(ttlSeconds) * time.Second

	interval, err := envInt("CANDLE_INTERVAL_SECONDS", 5)
	if err != nil {
		errs = append(errs, err.Error())
	} else if interval <= 0 {
		errs = append(errs, "CANDLE_INTERVAL_SECONDS must be positive")
	}
	cfg.CandleInterval = int64(interval)

	cfg.MaxCandles, err = envInt("MAX_CANDLES", 20)
	if err != nil {
		errs = append(errs, err.Error())
	} else if cfg.MaxCandles <= 0 {
		errs = append(errs, "MAX_CANDLES must be positive")
	}

	cfg.BreakerThreshold, err = envInt("BREAKER_THRESHOLD", 5)
	if err != nil {
		errs = append(errs, err.Error())
	} else if cfg.BreakerThreshold <= 0 {
		errs = append(errs, "BREAKER_THRESHOLD must be positive")
	}

	cooldownSeconds, err := envInt("BREAKER_COOLDOWN_SECONDS", 10)
	if err != nil {
		errs = append(errs, err.Error())
	} else if cooldownSeconds <= 0 {
		errs = append(errs, "BREAKER_COOLDOWN_SECONDS must be positive")
	}
	cfg.BreakerCooldown = time.Duration(cooldownSeconds) * time.Second

	cfg.CacheBackend = strings.ToLower(getEnv("CACHE_BACKEND", "memory"))
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "sqlite" {
		errs = append(errs, fmt.Sprintf("CACHE_BACKEND must be memory or sqlite, got %q", cfg.CacheBackend))
	}

	cfg.CacheLookups, err = envInt("CACHE_LOOKUPS", 25)
	if err != nil {
		errs = append(errs, err.Error())
	} else if cfg.CacheLookups <= 0 {
		errs = append(errs, "CACHE_LOOKUPS must be positive")
	}

	cfg.SourceDelayMs, err = envInt("SOURCE_DELAY_MS", 1000)
	if err != nil {
		errs = append(errs, err.Error())
	} else if cfg.SourceDelayMs < 0 {
		errs = append(errs, "SOURCE_DELAY_MS cannot be negative")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	// Counters expiring before the oldest candle window is read show up
	// as zero-request seconds. Not fatal, but almost never intended.
	lookback := time.Duration(cfg.CandleInterval*int64(cfg.MaxCandles+1)) * time.Second
	if cfg.CounterTTL < lookback {
		log.Printf("[config] COUNTER_TTL_SECONDS=%s is shorter than the candle look-back %s; expired seconds will read as zero",
			cfg.CounterTTL, lookback)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q for %s", v, key)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q for %s", v, key)
	}
	return f, nil
}
