package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficpulse/config"
	"trafficpulse/internal/candles"
	"trafficpulse/internal/gateway"
	"trafficpulse/internal/logger"
	"trafficpulse/internal/metrics"
	"trafficpulse/internal/model"
	redisstore "trafficpulse/internal/store/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[candlefeed] starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[candlefeed] config: %v", err)
	}

	slogger := logger.Init("candlefeed", cfg.LogLevel)
	slogger.Info("configuration loaded",
		slog.String("redis", cfg.RedisAddr),
		slog.Int64("interval_seconds", cfg.CandleInterval),
		slog.Int("max_candles", cfg.MaxCandles),
		slog.String("gateway", cfg.GatewayAddr),
	)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.StaleAfter = time.Duration(3*cfg.CandleInterval) * time.Second
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
		log.Fatalf("[candlefeed] redis init failed: %v", err)
	}
	defer store.Close()

	store.Breaker().OnStateChange = func(from, to redisstore.BreakerState) {
		log.Printf("[candlefeed] circuit breaker %s -> %s", from, to)
		prom.BreakerState.Set(float64(to))
		if to == redisstore.BreakerOpen {
			prom.BreakerTrips.Inc()
		}
	}

	health.CheckRedis(ctx, store.Client())
	health.StartLivenessChecker(ctx, store.Client(), 10*time.Second)

	// ---- Candle builder ----
	builder, err := candles.NewBuilder(store, candles.BuilderConfig{
		Interval:   cfg.CandleInterval,
		MaxCandles: cfg.MaxCandles,
	})
	if err != nil {
		log.Fatalf("[candlefeed] builder init failed: %v", err)
	}

	builder.OnCycle = func(count int, took time.Duration) {
		prom.CyclesTotal.Inc()
		prom.ComputeDur.Observe(took.Seconds())
		health.SetProgress(time.Now())
	}
	builder.OnError = func(err error) {
		prom.CyclesAborted.Inc()
	}

	// ---- WebSocket hub ----
	hub := gateway.NewHub(cfg.CandleInterval)
	hub.OnBroadcast = func(clients int) {
		prom.BroadcastsTotal.Inc()
	}
	hub.OnDropped = func() {
		prom.FramesDropped.Inc()
	}
	hub.OnClients = func(n int) {
		prom.WSClients.Set(float64(n))
	}

	windows := make(chan []model.Candle, 4)
	go builder.Run(ctx, windows)
	go hub.Run(ctx, windows)

	// ---- Gateway HTTP server ----
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}

	go func() {
		log.Printf("[candlefeed] ws feed at ws://localhost%s/ws", cfg.GatewayAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[candlefeed] gateway server error: %v", err)
		}
	}()

	log.Println("[candlefeed] ╔══════════════════════════════════════════════════════════╗")
	log.Println("[candlefeed] ║  OHLC Candle Feed                                        ║")
	log.Printf("[candlefeed] ║  window: %d candles x %ds, rebuilt every cycle           ║",
		cfg.MaxCandles, cfg.CandleInterval)
	log.Println("[candlefeed] ║  [Redis counters] -> [Builder] -> [WS broadcast]         ║")
	log.Println("[candlefeed] ╚══════════════════════════════════════════════════════════╝")

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[candlefeed] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[candlefeed] shutdown complete.")
}
