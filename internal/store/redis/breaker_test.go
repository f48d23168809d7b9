package redis

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(3, 100*time.Millisecond)
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %v", b.State())
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}

	if b.State() != BreakerOpen {
		t.Errorf("expected open after 3 failures, got %v", b.State())
	}

	if err := b.Do(func() error { return nil }); err != ErrBreakerOpen {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreakerProbeClosesOnSuccess(t *testing.T) {
	b := NewBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 2; i++ {
		b.Do(func() error { return errFail })
	}
	if b.State() != BreakerOpen {
		t.Fatal("expected open")
	}

	time.Sleep(60 * time.Millisecond)

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected probe success, got %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %v", b.State())
	}
}

func TestBreakerProbeReopensOnFailure(t *testing.T) {
	b := NewBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 2; i++ {
		b.Do(func() error { return errFail })
	}

	time.Sleep(60 * time.Millisecond)
	b.Do(func() error { return errFail })

	if b.State() != BreakerOpen {
		t.Errorf("expected open after failed probe, got %v", b.State())
	}
}

func TestBreakerSuccessResetsStrikes(t *testing.T) {
	b := NewBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })
	b.Do(func() error { return nil })

	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })

	if b.State() != BreakerClosed {
		t.Errorf("expected closed after reset, got %v", b.State())
	}
}

func TestBreakerRejectsConcurrentProbes(t *testing.T) {
	b := NewBreaker(1, 50*time.Millisecond)
	b.Do(func() error { return errors.New("fail") })

	time.Sleep(60 * time.Millisecond)

	// First call after the cooldown occupies the probe slot; a second call
	// arriving while it is still in flight must be rejected, not queued.
	release := make(chan struct{})
	probing := make(chan struct{})
	go b.Do(func() error {
		close(probing)
		<-release
		return nil
	})

	<-probing
	if err := b.Do(func() error { return nil }); err != ErrBreakerOpen {
		t.Errorf("expected ErrBreakerOpen during in-flight probe, got %v", err)
	}
	close(release)
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []BreakerState
	b := NewBreaker(1, 50*time.Millisecond)
	b.OnStateChange = func(from, to BreakerState) {
		transitions = append(transitions, to)
	}

	b.Do(func() error { return errors.New("fail") })

	if len(transitions) != 1 || transitions[0] != BreakerOpen {
		t.Errorf("expected [open], got %v", transitions)
	}

	time.Sleep(60 * time.Millisecond)
	b.Do(func() error { return nil })

	if len(transitions) != 3 {
		t.Fatalf("expected 3 transitions, got %d: %v", len(transitions), transitions)
	}
	if transitions[1] != BreakerHalfOpen || transitions[2] != BreakerClosed {
		t.Errorf("expected [open, half-open, closed], got %v", transitions)
	}
}
