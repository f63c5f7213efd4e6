package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/alerting"
	"github.com/glowlens/glowlens-reliability/internal/metrics"
	"github.com/glowlens/glowlens-reliability/internal/models"
)

func TestSweepChecksAllMonitorsAndAlerts(t *testing.T) {
	collector := metrics.NewCollector(nil, 0)
	alerts := alerting.NewManager(nil, collector, nil)

	healthy := NewServiceMonitor("vision_analysis", collector, nil)
	failing := NewServiceMonitor("vector_search", collector, nil)
	for i := 0; i < 10; i++ {
		failing.RecordRequest(time.Millisecond, false, "timeout", "boom")
	}

	runner := NewRunner(nil, collector, alerts, []*ServiceMonitor{healthy, failing}, time.Minute)
	runner.Sweep()

	summary := collector.ServiceHealthSummary()
	if len(summary.Services) != 2 {
		t.Fatalf("expected both services checked, got %d", len(summary.Services))
	}
	if summary.OverallStatus != models.StatusUnhealthy {
		t.Fatalf("expected unhealthy overall, got %s", summary.OverallStatus)
	}
	if len(alerts.ActiveAlerts()) == 0 {
		t.Fatalf("expected alerts raised during sweep")
	}

	// Counters reset after the sweep, so the next window starts clean.
	if health := failing.CheckHealth(); health.Status != models.StatusHealthy {
		t.Fatalf("expected reset counters, got %s", health.Status)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	collector := metrics.NewCollector(nil, 0)
	runner := NewRunner(nil, collector, nil, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop after cancellation")
	}
}
