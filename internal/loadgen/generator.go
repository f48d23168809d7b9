package loadgen

import (
	"context"
	"fmt"
	"log"
	"time"

	"trafficpulse/internal/model"
)

const (
	// DefaultRetention is how long a per-second counter survives after its
	// last increment. It must cover the widest reader look-back window.
	DefaultRetention = 120 * time.Second

	// DefaultTickInterval is the wall-clock spacing between published samples.
	DefaultTickInterval = time.Second
)

// GeneratorConfig configures a Generator. Zero values select the defaults.
type GeneratorConfig struct {
	Retention    time.Duration // TTL applied to every counter it touches
	TickInterval time.Duration // spacing between ticks in Run
}

// Generator publishes one synthetic counter increment per second. Each tick
// increments requests:{unix_ts} for the current second and refreshes its TTL
// in a single atomic round trip, so concurrent generators compose additively.
type Generator struct {
	store     model.CounterWriter
	sampler   *Sampler
	retention time.Duration
	every     time.Duration

	// Optional hooks, called synchronously from the tick path.
	OnPublish func(ts int64, count int64, took time.Duration)
	OnSkip    func(err error)
}

// NewGenerator wires a Generator to a counter store. A nil sampler gets the
// default signal shape.
func NewGenerator(store model.CounterWriter, sampler *Sampler, cfg GeneratorConfig) (*Generator, error) {
	if store == nil {
		return nil, fmt.Errorf("loadgen: counter store is nil")
	}
	if cfg.Retention < 0 || cfg.TickInterval < 0 {
		return nil, fmt.Errorf("loadgen: negative retention or tick interval")
	}
	if sampler == nil {
		sampler = NewSampler()
	}
	if cfg.Retention == 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Generator{
		store:     store,
		sampler:   sampler,
		retention: cfg.Retention,
		every:     cfg.TickInterval,
	}, nil
}

// Tick publishes the sample for the second containing now. The increment and
// the TTL refresh land together or not at all; on error nothing is retried
// and the caller decides whether the gap matters.
func (g *Generator) Tick(ctx context.Context, now time.Time) error {
	ts := now.Unix()
	n := g.sampler.Sample(ts)

	key := model.CounterKey(ts)
	start := time.Now()
	if _, err := g.store.IncrByExpire(ctx, key, n, g.retention); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	if g.OnPublish != nil {
		g.OnPublish(ts, n, time.Since(start))
	}
	return nil
}

// Run ticks once per interval until ctx is cancelled. A failed tick is
// logged and skipped; the missed second stays a gap in the series.
func (g *Generator) Run(ctx context.Context) {
	log.Printf("[loadgen] generator started (retention=%s tick=%s)", g.retention, g.every)

	ticker := time.NewTicker(g.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[loadgen] generator stopped")
			return
		case now := <-ticker.C:
			if err := g.Tick(ctx, now); err != nil {
				log.Printf("[loadgen] tick skipped: %v", err)
				if g.OnSkip != nil {
					g.OnSkip(err)
				}
			}
		}
	}
}
