// Package candles folds per-second request counters into fixed-width OHLC
// buckets with interval-aligned edges, tolerant of missing seconds.
package candles

import (
	"context"
	"fmt"
	"log"
	"time"

	"trafficpulse/internal/model"
)

const (
	DefaultInterval   = 5  // seconds per candle
	DefaultMaxCandles = 20 // candles per window
)

// BuilderConfig configures a Builder. Interval and MaxCandles must be
// positive; Every defaults to one interval between recomputes.
type BuilderConfig struct {
	Interval   int64
	MaxCandles int
	Every      time.Duration
}

// Builder rebuilds the candle window from scratch on every cycle. Bucket
// edges are anchored to multiples of Interval, so repeated runs always see
// the same boundaries no matter when they fire.
type Builder struct {
	reader     model.CounterReader
	interval   int64
	maxCandles int
	every      time.Duration

	// Now is the clock anchoring the window. Tests pin it; nil means time.Now.
	Now func() time.Time

	// Optional hooks, called synchronously from the cycle path.
	OnCycle func(candles int, took time.Duration)
	OnError func(err error)
}

// NewBuilder wires a Builder to a counter reader. Non-positive Interval or
// MaxCandles is a configuration error and is rejected here, before any
// nonsensical buckets can be produced.
func NewBuilder(reader model.CounterReader, cfg BuilderConfig) (*Builder, error) {
	if reader == nil {
		return nil, fmt.Errorf("candles: counter reader is nil")
	}
	if cfg.Interval <= 0 || cfg.MaxCandles <= 0 {
		return nil, fmt.Errorf("candles: interval and max candles must be positive (got interval=%d max=%d)",
			cfg.Interval, cfg.MaxCandles)
	}
	if cfg.Every < 0 {
		return nil, fmt.Errorf("candles: negative recompute period %s", cfg.Every)
	}
	if cfg.Every == 0 {
		cfg.Every = time.Duration(cfg.Interval) * time.Second
	}
	return &Builder{
		reader:     reader,
		interval:   cfg.Interval,
		maxCandles: cfg.MaxCandles,
		every:      cfg.Every,
	}, nil
}

// Compute reads the counter window and folds it into exactly maxCandles
// candles, oldest first. Every second in [start, alignedNow+interval) is
// enumerated, absent keys reading as 0; the trailing in-progress interval
// is fetched but only completed buckets are emitted. A failed read aborts
// the whole cycle, never returning a partial window.
func (b *Builder) Compute(ctx context.Context) ([]model.Candle, error) {
	now := b.now().Unix()
	alignedNow := (now / b.interval) * b.interval
	start := alignedNow - int64(b.maxCandles)*b.interval
	end := alignedNow + b.interval

	keys := make([]string, 0, end-start)
	for ts := start; ts < end; ts++ {
		keys = append(keys, model.CounterKey(ts))
	}

	counts, err := b.reader.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read counters [%d,%d): %w", start, end, err)
	}

	out := make([]model.Candle, 0, b.maxCandles)
	for i := 0; i < b.maxCandles; i++ {
		out = append(out, b.fold(start+int64(i)*b.interval, counts))
	}
	return out, nil
}

// fold summarizes the seconds in [start, start+interval) into one candle
// stamped with the bucket end time.
func (b *Builder) fold(start int64, counts map[string]int64) model.Candle {
	end := start + b.interval
	c := model.Candle{TS: time.Unix(end, 0).UTC()}

	for ts := start; ts < end; ts++ {
		v := counts[model.CounterKey(ts)]
		if ts == start {
			c.Open, c.High, c.Low = v, v, v
		}
		if v > c.High {
			c.High = v
		}
		if v < c.Low {
			c.Low = v
		}
		c.Close = v
	}
	return c
}

// Run recomputes the window on a fixed cadence and pushes each full snapshot
// to out until ctx is cancelled. An aborted cycle leaves the previous
// snapshot standing; the next successful cycle replaces it wholesale.
func (b *Builder) Run(ctx context.Context, out chan<- []model.Candle) {
	log.Printf("[candles] builder started (interval=%ds window=%d every=%s)",
		b.interval, b.maxCandles, b.every)

	ticker := time.NewTicker(b.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[candles] builder stopped")
			return
		case <-ticker.C:
			started := time.Now()
			window, err := b.Compute(ctx)
			if err != nil {
				log.Printf("[candles] cycle aborted: %v", err)
				if b.OnError != nil {
					b.OnError(err)
				}
				continue
			}
			if b.OnCycle != nil {
				b.OnCycle(len(window), time.Since(started))
			}
			select {
			case out <- window:
			case <-ctx.Done():
				log.Printf("[candles] builder stopped")
				return
			}
		}
	}
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
