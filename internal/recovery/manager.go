package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

// Outcome labels how a recovered call produced its value.
type Outcome string

const (
	OutcomePrimary  Outcome = "success"
	OutcomeFallback Outcome = "fallback"
	OutcomeDegraded Outcome = "degraded"
)

// Result is the value of a recovered call plus how it was obtained, so the
// wrapping layer can record the outcome without re-deriving it.
type Result struct {
	Value    any
	Outcome  Outcome
	Attempts int
}

// FallbackFunc produces a best-effort substitute result when the primary path
// fails. It has the same shape as the wrapped operation.
type FallbackFunc func(ctx context.Context) (any, error)

// Manager dispatches wrapped calls to the per-service recovery policy. It is
// an explicit registry constructed at startup and injected into wrappers;
// there are no package-level singletons.
type Manager struct {
	mu sync.RWMutex

	logger    *slog.Logger
	configs   map[string]models.RecoveryConfig
	breakers  map[string]*CircuitBreaker
	fallbacks map[string]FallbackFunc
	degraded  map[string]any
}

// NewManager constructs an empty recovery registry.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:    logger,
		configs:   make(map[string]models.RecoveryConfig),
		breakers:  make(map[string]*CircuitBreaker),
		fallbacks: make(map[string]FallbackFunc),
		degraded:  make(map[string]any),
	}
}

// RegisterService sets the recovery policy for a service name. Policies are
// immutable once set; later registrations for the same name are ignored.
func (m *Manager) RegisterService(service string, cfg models.RecoveryConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.configs[service]; exists {
		m.logger.Warn("recovery policy already registered", slog.String("service", service))
		return
	}
	m.configs[service] = cfg
}

// RegisterFallback installs a substitute handler for a service.
func (m *Manager) RegisterFallback(service string, fn FallbackFunc) {
	m.mu.Lock()
	m.fallbacks[service] = fn
	m.mu.Unlock()
}

// RegisterDegradedResult installs the precomputed reduced-fidelity result
// returned under graceful degradation.
func (m *Manager) RegisterDegradedResult(service string, value any) {
	m.mu.Lock()
	m.degraded[service] = value
	m.mu.Unlock()
}

// Config returns the effective policy for a service, falling back to the
// default for unregistered names.
func (m *Manager) Config(service string) models.RecoveryConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cfg, ok := m.configs[service]; ok {
		return cfg
	}
	return models.DefaultRecoveryConfig()
}

// BreakerSnapshot returns breaker diagnostics for a service, if one exists.
func (m *Manager) BreakerSnapshot(service string) (BreakerSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	breaker, ok := m.breakers[service]
	if !ok {
		return BreakerSnapshot{}, false
	}
	return breaker.Snapshot(), true
}

// BreakerSnapshots returns diagnostics for every lazily created breaker.
func (m *Manager) BreakerSnapshots() []BreakerSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshots := make([]BreakerSnapshot, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		snapshots = append(snapshots, breaker.Snapshot())
	}
	return snapshots
}

// Execute runs fn for (service, operation) under the service's configured
// strategy and reports how the result was produced.
func (m *Manager) Execute(ctx context.Context, service, operation string, fn Operation) (Result, error) {
	cfg := m.Config(service)

	switch cfg.Strategy {
	case models.StrategyCircuitBreaker:
		return m.executeCircuitBreaker(ctx, service, operation, cfg, fn)
	case models.StrategyFallback:
		return m.executeFallback(ctx, service, operation, cfg, fn)
	case models.StrategyGracefulDegradation:
		return m.executeDegradation(ctx, service, operation, cfg, fn)
	default:
		return m.executeRetry(ctx, service, operation, cfg, fn)
	}
}

func (m *Manager) executeCircuitBreaker(ctx context.Context, service, operation string, cfg models.RecoveryConfig, fn Operation) (Result, error) {
	breaker := m.breakerFor(service, cfg)

	value, err := breaker.Call(ctx, fn)
	if err == nil {
		return Result{Value: value, Outcome: OutcomePrimary, Attempts: 1}, nil
	}

	if result, ok := m.tryFallback(ctx, service, cfg, 1); ok {
		m.logger.Info("fallback served after breaker failure",
			slog.String("service", service), slog.String("operation", operation), slog.Any("error", err))
		return result, nil
	}

	if _, isOpen := err.(*CircuitOpenError); isOpen {
		return Result{}, err
	}
	return Result{}, NewServiceError(service, operation, "call failed under circuit breaker", 1, err)
}

func (m *Manager) executeRetry(ctx context.Context, service, operation string, cfg models.RecoveryConfig, fn Operation) (Result, error) {
	maxAttempts := cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, RetryDelay(cfg, attempt-1)); err != nil {
				return Result{}, NewServiceError(service, operation, "retry cancelled", attempt, err)
			}
		}

		value, err := fn(ctx)
		if err == nil {
			return Result{Value: value, Outcome: OutcomePrimary, Attempts: attempt + 1}, nil
		}
		lastErr = err

		if Classify(service, err) != ClassTransient {
			m.logger.Debug("non-retryable failure",
				slog.String("service", service), slog.String("operation", operation), slog.Any("error", err))
			break
		}
		m.logger.Debug("transient failure, will retry",
			slog.String("service", service), slog.String("operation", operation),
			slog.Int("attempt", attempt+1), slog.Any("error", err))
	}

	if result, ok := m.tryFallback(ctx, service, cfg, maxAttempts); ok {
		return result, nil
	}
	return Result{}, NewServiceError(service, operation, "retries exhausted", maxAttempts, lastErr)
}

func (m *Manager) executeFallback(ctx context.Context, service, operation string, cfg models.RecoveryConfig, fn Operation) (Result, error) {
	value, err := fn(ctx)
	if err == nil {
		return Result{Value: value, Outcome: OutcomePrimary, Attempts: 1}, nil
	}

	if result, ok := m.tryFallback(ctx, service, cfg, 1); ok {
		return result, nil
	}
	return Result{}, NewServiceError(service, operation, "call failed with no fallback", 1, err)
}

func (m *Manager) executeDegradation(ctx context.Context, service, operation string, cfg models.RecoveryConfig, fn Operation) (Result, error) {
	value, err := fn(ctx)
	if err == nil {
		return Result{Value: value, Outcome: OutcomePrimary, Attempts: 1}, nil
	}

	m.mu.RLock()
	degraded, hasDegraded := m.degraded[service]
	m.mu.RUnlock()
	if hasDegraded {
		m.logger.Info("serving degraded result",
			slog.String("service", service), slog.String("operation", operation), slog.Any("error", err))
		return Result{Value: degraded, Outcome: OutcomeDegraded, Attempts: 1}, nil
	}

	if result, ok := m.tryFallback(ctx, service, cfg, 1); ok {
		return result, nil
	}
	return Result{}, NewServiceError(service, operation, "call failed with no degraded result", 1, err)
}

func (m *Manager) tryFallback(ctx context.Context, service string, cfg models.RecoveryConfig, attempts int) (Result, bool) {
	if !cfg.FallbackEnabled {
		return Result{}, false
	}
	m.mu.RLock()
	fallback, ok := m.fallbacks[service]
	m.mu.RUnlock()
	if !ok {
		return Result{}, false
	}

	value, err := fallback(ctx)
	if err != nil {
		m.logger.Warn("fallback handler failed", slog.String("service", service), slog.Any("error", err))
		return Result{}, false
	}
	return Result{Value: value, Outcome: OutcomeFallback, Attempts: attempts}, true
}

func (m *Manager) breakerFor(service string, cfg models.RecoveryConfig) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	breaker, ok := m.breakers[service]
	if !ok {
		breaker = NewCircuitBreaker(service, cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout)
		m.breakers[service] = breaker
	}
	return breaker
}

// RetryDelay computes the capped exponential delay preceding retry attempt
// retryIndex (zero-based): min(base * factor^retryIndex, max).
func RetryDelay(cfg models.RecoveryConfig, retryIndex int) time.Duration {
	if cfg.BaseDelay <= 0 {
		return 0
	}
	factor := cfg.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	delay := float64(cfg.BaseDelay) * math.Pow(factor, float64(retryIndex))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
