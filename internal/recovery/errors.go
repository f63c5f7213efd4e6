package recovery

import (
	"fmt"
	"time"
)

// ServiceError wraps a downstream failure with enough structured context for
// callers to log or branch on without string matching.
type ServiceError struct {
	Service   string
	Operation string
	Message   string
	Attempts  int
	Details   map[string]any
	Err       error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s.%s: %s", e.Service, e.Operation, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s: %v", e.Service, e.Operation, e.Message, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError constructs a ServiceError.
func NewServiceError(service, operation, message string, attempts int, err error) *ServiceError {
	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Attempts:  attempts,
		Err:       err,
	}
}

// CircuitOpenError is returned when a breaker refuses a call. It carries the
// breaker bookkeeping so callers can report time-to-recovery.
type CircuitOpenError struct {
	Service         string
	FailureCount    int
	LastFailure     time.Time
	RecoveryTimeout time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s: circuit open after %d failures, retry after %s", e.Service, e.FailureCount, e.RecoveryTimeout)
}

// InvalidInputError rejects a call before any downstream attempt. It is never
// retried.
type InvalidInputError struct {
	Service   string
	Operation string
	Field     string
	Reason    string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s.%s: invalid input %q: %s", e.Service, e.Operation, e.Field, e.Reason)
}

// UnavailableError reports that a capability's availability flag is down.
type UnavailableError struct {
	Service string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: capability unavailable", e.Service)
}

// Transient marks an error as retryable without consulting the keyword table.
func (e *UnavailableError) Transient() bool { return true }

// TransientError lets error values declare retryability explicitly, taking
// precedence over message-based classification.
type TransientError interface {
	error
	Transient() bool
}
