package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful wrapped calls.
	OutcomeSuccess = "success"
	// OutcomeError labels failed wrapped calls.
	OutcomeError = "error"
	// OutcomeFallback labels calls answered by a fallback handler.
	OutcomeFallback = "fallback"
	// OutcomeDegraded labels calls answered by a degraded result.
	OutcomeDegraded = "degraded"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glowlens_reliability",
			Name:      "requests_total",
			Help:      "Total wrapped downstream calls, partitioned by service and outcome.",
		},
		[]string{"service", "outcome"},
	)

	requestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "glowlens_reliability",
			Name:      "request_seconds",
			Help:      "Wrapped downstream call latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service"},
	)

	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "glowlens_reliability",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per service (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service"},
	)

	activeAlerts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "glowlens_reliability",
			Name:      "active_alerts",
			Help:      "Currently active alerts, partitioned by severity.",
		},
		[]string{"severity"},
	)
)

// RegisterProm attaches reliability collectors to the supplied Prometheus registerer.
func RegisterProm(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		requestsTotal,
		requestDurationSeconds,
		circuitBreakerState,
		activeAlerts,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRequest records a wrapped call duration and outcome label.
func ObserveRequest(service string, duration time.Duration, outcome string) {
	requestsTotal.WithLabelValues(service, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	requestDurationSeconds.WithLabelValues(service).Observe(duration.Seconds())
}

// SetBreakerState publishes the numeric circuit breaker state for a service.
func SetBreakerState(service string, state float64) {
	circuitBreakerState.WithLabelValues(service).Set(state)
}

// SetActiveAlerts publishes the active alert count for a severity.
func SetActiveAlerts(severity string, count int) {
	activeAlerts.WithLabelValues(severity).Set(float64(count))
}
