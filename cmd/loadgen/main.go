package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficpulse/config"
	"trafficpulse/internal/loadgen"
	"trafficpulse/internal/logger"
	"trafficpulse/internal/metrics"
	redisstore "trafficpulse/internal/store/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[loadgen] starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[loadgen] config: %v", err)
	}

	slogger := logger.Init("loadgen", cfg.LogLevel)
	slogger.Info("configuration loaded",
		slog.String("redis", cfg.RedisAddr),
		slog.Float64("amplitude", cfg.SampleAmplitude),
		slog.Float64("mean", cfg.SampleMean),
		slog.Float64("variance", cfg.SampleVariance),
		slog.Duration("counter_ttl", cfg.CounterTTL),
	)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.StaleAfter = 10 * time.Second
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Redis counter store ----
	store, err := redisstore.New(redisstore.Config{
		Addr:             cfg.RedisAddr,
		Password:         cfg.RedisPassword,
		DB:               cfg.RedisDB,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
	})
	if err != nil {
		log.Fatalf("[loadgen] redis init failed: %v", err)
	}
	defer store.Close()

	store.Breaker().OnStateChange = func(from, to redisstore.BreakerState) {
		log.Printf("[loadgen] circuit breaker %s -> %s", from, to)
		prom.BreakerState.Set(float64(to))
		if to == redisstore.BreakerOpen {
			prom.BreakerTrips.Inc()
		}
	}

	health.CheckRedis(ctx, store.Client())
	health.StartLivenessChecker(ctx, store.Client(), 10*time.Second)

	// ---- Generator ----
	sampler := loadgen.NewSampler()
	sampler.Amplitude = cfg.SampleAmplitude
	sampler.Mean = cfg.SampleMean
	sampler.Variance = cfg.SampleVariance

	gen, err := loadgen.NewGenerator(store, sampler, loadgen.GeneratorConfig{
		Retention: cfg.CounterTTL,
	})
	if err != nil {
		log.Fatalf("[loadgen] generator init failed: %v", err)
	}

	gen.OnPublish = func(ts, count int64, took time.Duration) {
		prom.SamplesTotal.Inc()
		prom.RequestsGenerated.Add(float64(count))
		prom.PublishDur.Observe(took.Seconds())
		health.SetProgress(time.Now())
	}
	gen.OnSkip = func(err error) {
		prom.TicksSkipped.Inc()
	}

	go gen.Run(ctx)

	log.Println("[loadgen] ╔══════════════════════════════════════════════════════════╗")
	log.Println("[loadgen] ║  Synthetic Load Generator                                ║")
	log.Printf("[loadgen] ║  signal: %.1f*sin(t) + %.1f + N(%.1f, %.1f)                 ║",
		cfg.SampleAmplitude, cfg.SampleMean, cfg.SampleMean, cfg.SampleVariance)
	log.Printf("[loadgen] ║  counters: requests:{ts}, ttl=%-10s                ║", cfg.CounterTTL)
	log.Println("[loadgen] ╚══════════════════════════════════════════════════════════╝")

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[loadgen] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	log.Println("[loadgen] shutdown complete.")
}
