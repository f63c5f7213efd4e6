package recovery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failingOp(err error) Operation {
	return func(context.Context) (any, error) { return nil, err }
}

func succeedingOp(value any) Operation {
	return func(context.Context) (any, error) { return value, nil }
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("vector_search", 3, time.Minute)
	boom := errors.New("connection refused")

	for i := 0; i < 3; i++ {
		if _, err := cb.Call(context.Background(), failingOp(boom)); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected underlying error, got %v", i, err)
		}
	}
	if got := cb.Snapshot().State; got != StateOpen {
		t.Fatalf("expected open state, got %s", got)
	}

	// While open, calls fail fast without invoking the wrapped function.
	invoked := false
	_, err := cb.Call(context.Background(), func(context.Context) (any, error) {
		invoked = true
		return nil, nil
	})
	var open *CircuitOpenError
	if !errors.As(err, &open) {
		t.Fatalf("expected CircuitOpenError, got %v", err)
	}
	if open.FailureCount != 3 {
		t.Fatalf("expected failure count 3 in error, got %d", open.FailureCount)
	}
	if invoked {
		t.Fatalf("wrapped function must not run while circuit is open")
	}
}

func TestBreakerHalfOpenProbeSuccess(t *testing.T) {
	cb := NewCircuitBreaker("classifier", 1, 10*time.Millisecond)
	_, _ = cb.Call(context.Background(), failingOp(errors.New("timeout")))
	if cb.Snapshot().State != StateOpen {
		t.Fatalf("expected open state after threshold failure")
	}

	time.Sleep(15 * time.Millisecond)

	value, err := cb.Call(context.Background(), succeedingOp("ok"))
	if err != nil {
		t.Fatalf("probe should have been attempted: %v", err)
	}
	if value != "ok" {
		t.Fatalf("unexpected probe result %v", value)
	}

	snapshot := cb.Snapshot()
	if snapshot.State != StateClosed || snapshot.FailureCount != 0 {
		t.Fatalf("expected closed breaker with reset count, got %+v", snapshot)
	}
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("classifier", 1, 10*time.Millisecond)
	_, _ = cb.Call(context.Background(), failingOp(errors.New("timeout")))

	time.Sleep(15 * time.Millisecond)

	if _, err := cb.Call(context.Background(), failingOp(errors.New("still down"))); err == nil {
		t.Fatalf("expected probe failure to propagate")
	}
	if got := cb.Snapshot().State; got != StateOpen {
		t.Fatalf("expected breaker to reopen, got %s", got)
	}
}

func TestBreakerSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker("vision_analysis", 1, 5*time.Millisecond)
	_, _ = cb.Call(context.Background(), failingOp(errors.New("unavailable")))
	time.Sleep(10 * time.Millisecond)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = cb.Call(context.Background(), func(context.Context) (any, error) {
			close(probeStarted)
			<-release
			return "ok", nil
		})
	}()

	<-probeStarted
	_, err := cb.Call(context.Background(), succeedingOp("second"))
	var open *CircuitOpenError
	if !errors.As(err, &open) {
		t.Fatalf("expected second caller to be rejected during probe, got %v", err)
	}
	close(release)
}
