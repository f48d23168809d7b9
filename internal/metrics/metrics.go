// Package metrics exposes Prometheus metrics and a health endpoint for the
// traffic pipeline daemons.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the traffic pipeline.
type Metrics struct {
	// Load generator
	SamplesTotal      prometheus.Counter
	RequestsGenerated prometheus.Counter
	TicksSkipped      prometheus.Counter
	PublishDur        prometheus.Histogram

	// Candle builder
	CyclesTotal   prometheus.Counter
	CyclesAborted prometheus.Counter
	ComputeDur    prometheus.Histogram

	// Gateway
	BroadcastsTotal prometheus.Counter
	FramesDropped   prometheus.Counter
	WSClients       prometheus.Gauge

	// Redis circuit breaker
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		SamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trafficpulse_samples_total",
			Help: "Total per-second samples published",
		}),
		RequestsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trafficpulse_requests_generated_total",
			Help: "Total synthetic requests accumulated into counters",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trafficpulse_ticks_skipped_total",
			Help: "Generator ticks skipped because the store was unreachable",
		}),
		PublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trafficpulse_publish_duration_seconds",
			Help:    "Counter publish latency (INCRBY+EXPIRE round trip)",
			Buckets: prometheus.DefBuckets,
		}),

		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trafficpulse_candle_cycles_total",
			Help: "Completed candle aggregation cycles",
		}),
		CyclesAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trafficpulse_candle_cycles_aborted_total",
			Help: "Aggregation cycles aborted by store errors",
		}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trafficpulse_candle_compute_duration_seconds",
			Help:    "Candle window recompute latency",
			Buckets: prometheus.DefBuckets,
		}),

		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trafficpulse_ws_broadcasts_total",
			Help: "Candle window frames broadcast to WebSocket clients",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trafficpulse_ws_frames_dropped_total",
			Help: "Frames dropped for clients too slow to drain their queue",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trafficpulse_ws_clients",
			Help: "Connected WebSocket clients",
		}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trafficpulse_redis_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trafficpulse_redis_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	prometheus.MustRegister(
		m.SamplesTotal,
		m.RequestsGenerated,
		m.TicksSkipped,
		m.PublishDur,
		m.CyclesTotal,
		m.CyclesAborted,
		m.ComputeDur,
		m.BroadcastsTotal,
		m.FramesDropped,
		m.WSClients,
		m.BreakerState,
		m.BreakerTrips,
	)

	return m
}

// HealthStatus tracks dependency health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool
	RedisLatencyMs float64
	LastProgress   time.Time // last successful publish or aggregation cycle
	LastCheckAt    time.Time
	StartedAt      time.Time

	// StaleAfter degrades health when no progress lands for this long.
	// Zero disables the check.
	StaleAfter time.Duration
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// SetProgress records a successful publish or cycle.
func (h *HealthStatus) SetProgress(t time.Time) {
	h.mu.Lock()
	h.LastProgress = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx ends.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.RedisConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	progressAge := ""
	if !h.LastProgress.IsZero() {
		age := time.Since(h.LastProgress)
		progressAge = age.Round(time.Millisecond).String()
		if h.StaleAfter > 0 && age > h.StaleAfter {
			overallStatus = "degraded"
			httpCode = http.StatusServiceUnavailable
		}
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		LastProgress   string  `json:"last_progress"`
		ProgressAge    string  `json:"progress_age"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		LastProgress:   h.LastProgress.Format(time.RFC3339),
		ProgressAge:    progressAge,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
