package recovery

import (
	"context"
	"sync"
	"time"
)

// BreakerState enumerates circuit breaker states.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerSnapshot exposes breaker bookkeeping for diagnostics.
type BreakerSnapshot struct {
	Service          string
	State            BreakerState
	FailureCount     int
	LastFailure      time.Time
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// Operation is a wrapped downstream call. It must honour the supplied context.
type Operation func(ctx context.Context) (any, error)

// CircuitBreaker guards a single service with a failure-counting state
// machine. Instances are never shared across unrelated services.
type CircuitBreaker struct {
	mu sync.Mutex

	service          string
	state            BreakerState
	failureCount     int
	lastFailure      time.Time
	failureThreshold int
	recoveryTimeout  time.Duration
	probing          bool
}

// NewCircuitBreaker constructs a closed breaker for one service.
func NewCircuitBreaker(service string, failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		service:          service,
		state:            StateClosed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// Call executes fn under the breaker's state machine. While OPEN it fails
// fast until the recovery timeout elapses; the first call after that becomes
// the single HALF_OPEN probe. The downstream call itself runs outside the
// breaker's lock.
func (cb *CircuitBreaker) Call(ctx context.Context, fn Operation) (any, error) {
	if err := cb.acquire(); err != nil {
		return nil, err
	}

	result, err := fn(ctx)
	if err != nil {
		cb.recordFailure()
		return nil, err
	}

	cb.recordSuccess()
	return result, nil
}

// Snapshot returns the current breaker state for diagnostics.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Service:          cb.service,
		State:            cb.state,
		FailureCount:     cb.failureCount,
		LastFailure:      cb.lastFailure,
		FailureThreshold: cb.failureThreshold,
		RecoveryTimeout:  cb.recoveryTimeout,
	}
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.recoveryTimeout {
			return cb.openErrorLocked()
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			// Only one probe may be in flight.
			return cb.openErrorLocked()
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.state = StateClosed
	}
	cb.failureCount = 0
	cb.probing = false
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailure = time.Now()
	cb.probing = false

	if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

func (cb *CircuitBreaker) openErrorLocked() error {
	return &CircuitOpenError{
		Service:         cb.service,
		FailureCount:    cb.failureCount,
		LastFailure:     cb.lastFailure,
		RecoveryTimeout: cb.recoveryTimeout,
	}
}
