package model

import (
	"time"
)

// Candle is a fixed-width OHLC summary of the per-second request counters
// inside one aggregation bucket. Counts are int64 to match Redis INCRBY.
type Candle struct {
	TS    time.Time `json:"ts"`    // bucket END time (UTC, interval-aligned)
	Open  int64     `json:"open"`  // count of the earliest second in the bucket
	High  int64     `json:"high"`  // max count over the bucket
	Low   int64     `json:"low"`   // min count over the bucket
	Close int64     `json:"close"` // count of the latest second in the bucket
}

// Valid reports whether the candle satisfies the OHLC invariants:
// all fields non-negative, low <= open,close <= high.
func (c *Candle) Valid() bool {
	if c.Open < 0 || c.High < 0 || c.Low < 0 || c.Close < 0 {
		return false
	}
	if c.Low > c.Open || c.Low > c.Close || c.Low > c.High {
		return false
	}
	return c.High >= c.Open && c.High >= c.Close
}
