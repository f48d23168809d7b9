package loadgen

import (
	"math"
	"math/rand"
	"testing"
)

func TestSamplerNeverNegative(t *testing.T) {
	s := NewSampler()
	s.Noise = func() float64 { return -1e9 }

	for _, ts := range []int64{0, 1, 7, 1000, 1700000000} {
		if got := s.Sample(ts); got != 0 {
			t.Errorf("ts=%d: expected 0 after clamping, got %d", ts, got)
		}
	}
}

func TestSamplerClampsBeforeRounding(t *testing.T) {
	// sin(0)=0, so the trend at t=0 is exactly μ=10. Pinning the noise puts
	// the pre-round value anywhere we want.
	s := NewSampler()

	cases := []struct {
		noise float64
		want  int64
	}{
		{-10.2, 0}, // pre-round -0.2, clamps to 0
		{-9.8, 0},  // pre-round 0.2
		{-10.5, 0}, // pre-round -0.5: clamp first, then round
	}
	for _, c := range cases {
		s.Noise = func() float64 { return c.noise }
		if got := s.Sample(0); got != c.want {
			t.Errorf("noise=%v: expected %d, got %d", c.noise, c.want, got)
		}
	}
}

func TestSamplerRoundsHalfToEven(t *testing.T) {
	s := NewSampler()

	cases := []struct {
		noise float64 // pre-round value is 10 + noise at t=0
		want  int64
	}{
		{-9.5, 0},  // 0.5 -> 0
		{-8.5, 2},  // 1.5 -> 2
		{-7.5, 2},  // 2.5 -> 2
		{-6.5, 4},  // 3.5 -> 4
		{0.5, 10},  // 10.5 -> 10
		{1.5, 12},  // 11.5 -> 12
		{0.25, 10}, // 10.25 -> 10
		{0.75, 11}, // 10.75 -> 11
	}
	for _, c := range cases {
		s.Noise = func() float64 { return c.noise }
		if got := s.Sample(0); got != c.want {
			t.Errorf("value=%v: expected %d, got %d", 10+c.noise, c.want, got)
		}
	}
}

func TestSamplerTrendMean(t *testing.T) {
	// With the noise pinned to zero only A·sin(t)+μ remains. The sine term
	// averages out over many seconds, leaving a mean near μ.
	s := NewSampler()
	s.Noise = func() float64 { return 0 }

	const n = 200000
	var sum int64
	for ts := int64(0); ts < n; ts++ {
		sum += s.Sample(ts)
	}
	mean := float64(sum) / n

	if math.Abs(mean-s.Mean) > 0.1 {
		t.Errorf("expected trend mean near %v, got %v", s.Mean, mean)
	}
}

func TestSamplerFullSignalMean(t *testing.T) {
	// μ enters twice, once as the trend offset and once as the noise mean,
	// so the full signal averages near 2μ.
	s := NewSampler()
	rng := rand.New(rand.NewSource(42))
	s.Noise = func() float64 {
		return s.Mean + math.Sqrt(s.Variance)*rng.NormFloat64()
	}

	const n = 200000
	var sum int64
	for ts := int64(0); ts < n; ts++ {
		sum += s.Sample(ts)
	}
	mean := float64(sum) / n

	if math.Abs(mean-2*s.Mean) > 0.2 {
		t.Errorf("expected signal mean near %v, got %v", 2*s.Mean, mean)
	}
}

func TestSamplerZeroValueIsUsable(t *testing.T) {
	var s Sampler
	s.Amplitude = 1
	s.Mean = 3
	s.Variance = 1

	for ts := int64(0); ts < 100; ts++ {
		if got := s.Sample(ts); got < 0 {
			t.Fatalf("ts=%d: negative sample %d", ts, got)
		}
	}
}
