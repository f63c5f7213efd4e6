package services

import (
	"context"
	"errors"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/metrics"
	"github.com/glowlens/glowlens-reliability/internal/monitor"
	"github.com/glowlens/glowlens-reliability/internal/recovery"
)

// Canonical service names used across recovery policies, monitors, error
// classification and metric labels.
const (
	ServiceVisionAnalysis    = "vision_analysis"
	ServiceVectorSearch      = "vector_search"
	ServiceClassifier        = "classifier"
	ServiceDemographicSearch = "demographic_search"
)

// maxSearchLimit bounds how many matches a single search may request.
const maxSearchLimit = 100

// execute runs fn under the service's recovery policy and records the call on
// the monitor and the Prometheus surface. Every wrapped operation funnels
// through here so outcome accounting stays consistent across wrappers.
func execute(ctx context.Context, mon *monitor.ServiceMonitor, rec *recovery.Manager, service, operation string, fn recovery.Operation) (recovery.Result, error) {
	start := time.Now()
	result, err := rec.Execute(ctx, service, operation, fn)
	duration := time.Since(start)

	if snapshot, ok := rec.BreakerSnapshot(service); ok {
		metrics.SetBreakerState(service, float64(snapshot.State))
	}

	if err != nil {
		mon.RecordRequest(duration, false, errorType(err), err.Error())
		metrics.ObserveRequest(service, duration, metrics.OutcomeError)
		return recovery.Result{}, err
	}

	mon.RecordRequest(duration, true, "", "")
	metrics.ObserveRequest(service, duration, string(result.Outcome))
	return result, nil
}

// errorType buckets an error for the collector's per-service error counters.
func errorType(err error) string {
	var invalidInput *recovery.InvalidInputError
	if errors.As(err, &invalidInput) {
		return "invalid_input"
	}
	var circuitOpen *recovery.CircuitOpenError
	if errors.As(err, &circuitOpen) {
		return "circuit_open"
	}
	var unavailable *recovery.UnavailableError
	if errors.As(err, &unavailable) {
		return "unavailable"
	}
	var serviceErr *recovery.ServiceError
	if errors.As(err, &serviceErr) {
		return "service_error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "unknown"
}
