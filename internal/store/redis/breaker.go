package redis

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // calls pass through
	BreakerOpen                         // calls rejected until the cooldown passes
	BreakerHalfOpen                     // one probe call allowed through
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when the breaker rejects a call outright.
var ErrBreakerOpen = errors.New("redis: circuit breaker open")

const (
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 10 * time.Second
)

// Breaker trips after a run of consecutive failures and rejects calls until
// a cooldown passes. The first call after the cooldown runs as a single
// probe: success closes the breaker, failure reopens it. Concurrent calls
// during the probe are rejected rather than queued.
type Breaker struct {
	mu         sync.Mutex
	state      BreakerState
	strikes    int
	threshold  int
	cooldown   time.Duration
	lastStrike time.Time
	probing    bool

	// OnStateChange fires on every transition, under the breaker lock.
	OnStateChange func(from, to BreakerState)
}

// NewBreaker returns a closed breaker that trips after threshold consecutive
// failures and probes again after cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:     BreakerClosed,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Do runs fn unless the breaker rejects the call. The returned error is
// either ErrBreakerOpen or whatever fn returned.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if time.Since(b.lastStrike) < b.cooldown {
			return ErrBreakerOpen
		}
		b.shift(BreakerHalfOpen)
		b.probing = true
		return nil
	case BreakerHalfOpen:
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.probing = false
	}

	if err != nil {
		b.strikes++
		b.lastStrike = time.Now()
		if b.state == BreakerHalfOpen || b.strikes >= b.threshold {
			b.shift(BreakerOpen)
		}
		return
	}

	if b.state == BreakerHalfOpen {
		b.shift(BreakerClosed)
	}
	b.strikes = 0
}

func (b *Breaker) shift(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == BreakerClosed {
		b.strikes = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
