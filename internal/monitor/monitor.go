package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/metrics"
	"github.com/glowlens/glowlens-reliability/internal/models"
)

const (
	// unhealthyErrorRate marks a service unhealthy above this error rate.
	unhealthyErrorRate = 0.5
	// degradedErrorRate marks a service degraded above this error rate.
	degradedErrorRate = 0.1
	// degradedResponseTime marks a service degraded above this average latency.
	degradedResponseTime = 5 * time.Second
)

// ServiceMonitor records request outcomes for one service and derives its
// health from the counters accumulated since the last reset.
type ServiceMonitor struct {
	mu sync.Mutex

	service   string
	collector *metrics.Collector
	logger    *slog.Logger

	requestCount      int64
	errorCount        int64
	totalResponseTime time.Duration
	windowStart       time.Time
}

// NewServiceMonitor constructs a monitor for one service name.
func NewServiceMonitor(service string, collector *metrics.Collector, logger *slog.Logger) *ServiceMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceMonitor{
		service:     service,
		collector:   collector,
		logger:      logger,
		windowStart: time.Now().UTC(),
	}
}

// Service returns the monitored service name.
func (m *ServiceMonitor) Service() string {
	return m.service
}

// RecordRequest records one wrapped call outcome: counters, a timing metric
// tagged with the outcome, and on failure an error record.
func (m *ServiceMonitor) RecordRequest(duration time.Duration, success bool, errorType, errorMessage string) {
	m.mu.Lock()
	m.requestCount++
	m.totalResponseTime += duration
	if !success {
		m.errorCount++
	}
	m.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	if !success {
		outcome = metrics.OutcomeError
	}
	m.collector.RecordTiming(m.service+".request", duration, map[string]string{"outcome": outcome})
	if !success {
		m.collector.RecordError(m.service, errorType, errorMessage, nil)
	}
}

// CheckHealth derives the current health from the running totals, pushes it
// to the collector, and returns it. Zero requests derive a healthy service.
func (m *ServiceMonitor) CheckHealth() models.ServiceHealth {
	m.mu.Lock()
	requests := m.requestCount
	errors := m.errorCount
	total := m.totalResponseTime
	windowStart := m.windowStart
	m.mu.Unlock()

	var avgResponse time.Duration
	var errorRate float64
	if requests > 0 {
		avgResponse = total / time.Duration(requests)
		errorRate = float64(errors) / float64(requests)
	}

	status := models.StatusHealthy
	switch {
	case errorRate > unhealthyErrorRate:
		status = models.StatusUnhealthy
	case errorRate > degradedErrorRate || avgResponse > degradedResponseTime:
		status = models.StatusDegraded
	}

	details := map[string]any{
		"request_count": requests,
		"error_count":   errors,
		"window_start":  windowStart,
	}
	m.collector.UpdateServiceHealth(m.service, status, avgResponse, errorRate, details)

	if status != models.StatusHealthy {
		m.logger.Warn("service health degraded",
			slog.String("service", m.service),
			slog.String("status", string(status)),
			slog.Float64("error_rate", errorRate),
			slog.Duration("avg_response", avgResponse))
	}

	return models.ServiceHealth{
		ServiceName:  m.service,
		Status:       status,
		LastCheck:    time.Now().UTC(),
		ResponseTime: avgResponse,
		ErrorRate:    errorRate,
		SuccessRate:  1 - errorRate,
		Details:      details,
	}
}

// ResetCounters zeroes the running totals and starts a new window.
func (m *ServiceMonitor) ResetCounters() {
	m.mu.Lock()
	m.requestCount = 0
	m.errorCount = 0
	m.totalResponseTime = 0
	m.windowStart = time.Now().UTC()
	m.mu.Unlock()
}
