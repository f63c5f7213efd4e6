package models

import "time"

// RecoveryStrategy selects how a service's failures are handled.
type RecoveryStrategy string

const (
	StrategyRetry               RecoveryStrategy = "retry"
	StrategyFallback            RecoveryStrategy = "fallback"
	StrategyCircuitBreaker      RecoveryStrategy = "circuit_breaker"
	StrategyGracefulDegradation RecoveryStrategy = "graceful_degradation"
)

// RecoveryConfig is the per-service recovery policy. It is immutable after
// registration; unregistered services fall back to DefaultRecoveryConfig.
type RecoveryConfig struct {
	MaxRetries              int              `yaml:"maxRetries"`
	BaseDelay               time.Duration    `yaml:"baseDelay"`
	BackoffFactor           float64          `yaml:"backoffFactor"`
	MaxDelay                time.Duration    `yaml:"maxDelay"`
	Strategy                RecoveryStrategy `yaml:"strategy"`
	FallbackEnabled         bool             `yaml:"fallbackEnabled"`
	CircuitBreakerThreshold int              `yaml:"circuitBreakerThreshold"`
	CircuitBreakerTimeout   time.Duration    `yaml:"circuitBreakerTimeout"`
}

// DefaultRecoveryConfig applies to service names without an explicit policy.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxRetries:              3,
		BaseDelay:               time.Second,
		BackoffFactor:           2.0,
		MaxDelay:                30 * time.Second,
		Strategy:                StrategyRetry,
		FallbackEnabled:         true,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	}
}
