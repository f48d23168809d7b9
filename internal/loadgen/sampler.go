// Package loadgen synthesizes a plausible per-second request-rate signal
// and publishes it as per-second counters with a bounded retention window.
package loadgen

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Default signal shape: value = A·sin(t) + μ + N(μ, σ²), clamped at zero.
const (
	DefaultAmplitude = 5.0  // A
	DefaultMean      = 10.0 // μ
	DefaultVariance  = 2.0  // σ²
)

// Sampler synthesizes the "requests this second" count for a Unix second t:
//
//	round_half_even(max(A·sin(t) + μ + N(μ, σ²), 0))
//
// The trend A·sin(t)+μ is deterministic in t. The noise is a single draw
// from a normal distribution with mean μ and variance σ².
type Sampler struct {
	Amplitude float64 // A
	Mean      float64 // μ, both the trend offset and the noise mean
	Variance  float64 // σ²

	// Noise overrides the noise draw. Tests pin it to isolate the trend.
	Noise func() float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a Sampler with the default signal shape and a
// locally-seeded noise source.
func NewSampler() *Sampler {
	return &Sampler{
		Amplitude: DefaultAmplitude,
		Mean:      DefaultMean,
		Variance:  DefaultVariance,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sample returns the synthetic request count for Unix second t.
// The result is always >= 0: negative pre-round values clamp to zero
// before rounding. Rounding is half-to-even, never truncation.
func (s *Sampler) Sample(t int64) int64 {
	v := s.Trend(t) + s.noise()
	if v < 0 {
		v = 0
	}
	return int64(math.RoundToEven(v))
}

// Trend returns the deterministic component A·sin(t) + μ.
func (s *Sampler) Trend(t int64) float64 {
	return s.Amplitude*math.Sin(float64(t)) + s.Mean
}

func (s *Sampler) noise() float64 {
	if s.Noise != nil {
		return s.Noise()
	}

	s.mu.Lock()
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	z := s.rng.NormFloat64()
	s.mu.Unlock()

	return s.Mean + math.Sqrt(s.Variance)*z
}
