package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected default redis addr, got %q", cfg.RedisAddr)
	}
	if cfg.SampleAmplitude != 5 || cfg.SampleMean != 10 || cfg.SampleVariance != 2 {
		t.Errorf("unexpected sampling defaults: A=%v mean=%v var=%v",
			cfg.SampleAmplitude, cfg.SampleMean, cfg.SampleVariance)
	}
	if cfg.CandleInterval != 5 || cfg.MaxCandles != 20 {
		t.Errorf("unexpected candle defaults: interval=%d max=%d", cfg.CandleInterval, cfg.MaxCandles)
	}
	if cfg.CounterTTL != 120*time.Second {
		t.Errorf("expected 120s counter ttl, got %s", cfg.CounterTTL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info log level, got %v", cfg.LogLevel)
	}
	if cfg.CacheBackend != "memory" {
		t.Errorf("expected memory cache backend, got %q", cfg.CacheBackend)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("CANDLE_INTERVAL_SECONDS", "10")
	t.Setenv("MAX_CANDLES", "6")
	t.Setenv("SAMPLE_MEAN", "25.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CACHE_BACKEND", "SQLITE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.RedisAddr != "redis:6380" {
		t.Errorf("expected overridden redis addr, got %q", cfg.RedisAddr)
	}
	if cfg.CandleInterval != 10 || cfg.MaxCandles != 6 {
		t.Errorf("expected interval=10 max=6, got interval=%d max=%d", cfg.CandleInterval, cfg.MaxCandles)
	}
	if cfg.SampleMean != 25.5 {
		t.Errorf("expected mean 25.5, got %v", cfg.SampleMean)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.LogLevel)
	}
	if cfg.CacheBackend != "sqlite" {
		t.Errorf("expected lowercased sqlite backend, got %q", cfg.CacheBackend)
	}
}

func TestLoad_RejectsNonPositiveWindow(t *testing.T) {
	t.Setenv("CANDLE_INTERVAL_SECONDS", "0")
	t.Setenv("MAX_CANDLES", "-3")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "CANDLE_INTERVAL_SECONDS") {
		t.Errorf("error should name CANDLE_INTERVAL_SECONDS: %v", err)
	}
	if !strings.Contains(err.Error(), "MAX_CANDLES") {
		t.Errorf("error should name MAX_CANDLES: %v", err)
	}
}

func TestLoad_RejectsMalformedNumbers(t *testing.T) {
	t.Setenv("SAMPLE_VARIANCE", "lots")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "SAMPLE_VARIANCE") {
		t.Errorf("error should name SAMPLE_VARIANCE: %v", err)
	}
}

func TestLoad_RejectsUnknownCacheBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "CACHE_BACKEND") {
		t.Errorf("error should name CACHE_BACKEND: %v", err)
	}
}
