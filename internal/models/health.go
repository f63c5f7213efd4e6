package models

import "time"

// HealthStatus enumerates derived service health states.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// ServiceHealth is the most recent derived health state for one service.
// It is overwritten in place on every health check; error rate and success
// rate always sum to one.
type ServiceHealth struct {
	ServiceName  string
	Status       HealthStatus
	LastCheck    time.Time
	ResponseTime time.Duration
	ErrorRate    float64
	SuccessRate  float64
	Details      map[string]any
}

// MetricPoint is a single immutable sample in a named time series.
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
	Tags      map[string]string
	Metadata  map[string]any
}

// ErrorRecord captures one downstream failure for the error summary.
type ErrorRecord struct {
	Timestamp time.Time
	Service   string
	ErrorType string
	Message   string
	Tags      map[string]string
}

// MetricSummary aggregates points of one series inside a window.
type MetricSummary struct {
	Name   string
	Window time.Duration
	Count  int
	Min    float64
	Max    float64
	Avg    float64
	Latest float64
}

// HealthSummary rolls all per-service states into one overall status.
type HealthSummary struct {
	OverallStatus HealthStatus
	Services      map[string]ServiceHealth
	GeneratedAt   time.Time
}

// ErrorSummary reports the cumulative error counts per service and type,
// plus the capped detail records recorded inside the window.
type ErrorSummary struct {
	Window      time.Duration
	TotalErrors int
	ByService   map[string]int
	ByType      map[string]int
	Recent      []ErrorRecord
}

// TimingSummary describes one timing series for the performance summary.
type TimingSummary struct {
	Count int
	Avg   time.Duration
	P95   time.Duration
	Max   time.Duration
}

// PerformanceSummary exposes counters and timing percentiles for dashboards.
type PerformanceSummary struct {
	Counters map[string]int64
	Timings  map[string]TimingSummary
}
