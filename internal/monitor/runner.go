package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/alerting"
	"github.com/glowlens/glowlens-reliability/internal/metrics"
)

const (
	// DefaultCheckInterval spaces health check sweeps.
	DefaultCheckInterval = time.Minute
	// defaultCleanupInterval spaces metric retention sweeps.
	defaultCleanupInterval = time.Hour
	// defaultMaxDataAge is the retention horizon for points and error details.
	defaultMaxDataAge = 24 * time.Hour
)

// Runner drives the periodic monitoring loop: health checks on every
// registered monitor, alert evaluation, and hourly metric cleanup. A failure
// in one service's check never aborts the others.
type Runner struct {
	logger    *slog.Logger
	collector *metrics.Collector
	alerts    *alerting.Manager
	monitors  []*ServiceMonitor
	interval  time.Duration
}

// NewRunner constructs the loop over the given monitors.
func NewRunner(logger *slog.Logger, collector *metrics.Collector, alerts *alerting.Manager, monitors []*ServiceMonitor, interval time.Duration) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Runner{
		logger:    logger,
		collector: collector,
		alerts:    alerts,
		monitors:  monitors,
		interval:  interval,
	}
}

// Run blocks until ctx is cancelled, sweeping on the configured interval.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	lastCleanup := time.Now()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("monitor loop stopping")
			return ctx.Err()
		case <-ticker.C:
			r.Sweep()
			if time.Since(lastCleanup) >= defaultCleanupInterval {
				purged := r.collector.CleanupOldData(defaultMaxDataAge)
				r.logger.Debug("retention sweep", slog.Int("purged", purged))
				lastCleanup = time.Now()
			}
		}
	}
}

// Sweep performs one full health check cycle followed by alert evaluation.
func (r *Runner) Sweep() {
	for _, m := range r.monitors {
		if err := r.checkOne(m); err != nil {
			r.logger.Error("health check failed",
				slog.String("service", m.Service()), slog.Any("error", err))
		}
	}
	if r.alerts != nil {
		r.alerts.CheckAlerts()
	}
}

func (r *Runner) checkOne(m *ServiceMonitor) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("health check panic: %v", recovered)
		}
	}()
	m.CheckHealth()
	m.ResetCounters()
	return nil
}
