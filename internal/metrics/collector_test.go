package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

func TestServiceHealthSummaryAggregation(t *testing.T) {
	cases := []struct {
		name     string
		statuses []models.HealthStatus
		want     models.HealthStatus
	}{
		{"all healthy", []models.HealthStatus{models.StatusHealthy, models.StatusHealthy}, models.StatusHealthy},
		{"one degraded", []models.HealthStatus{models.StatusHealthy, models.StatusDegraded}, models.StatusDegraded},
		{"one unhealthy", []models.HealthStatus{models.StatusDegraded, models.StatusUnhealthy}, models.StatusUnhealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			collector := NewCollector(nil, 0)
			for i, status := range tc.statuses {
				collector.UpdateServiceHealth(serviceName(i), status, time.Millisecond, 0, nil)
			}
			summary := collector.ServiceHealthSummary()
			if summary.OverallStatus != tc.want {
				t.Fatalf("expected overall %s, got %s", tc.want, summary.OverallStatus)
			}
			if len(summary.Services) != len(tc.statuses) {
				t.Fatalf("expected %d services, got %d", len(tc.statuses), len(summary.Services))
			}
		})
	}
}

func TestUpdateServiceHealthRates(t *testing.T) {
	collector := NewCollector(nil, 0)
	collector.UpdateServiceHealth("vision_analysis", models.StatusDegraded, 2*time.Second, 0.25, nil)

	snapshot, ok := collector.ServiceHealth("vision_analysis")
	if !ok {
		t.Fatalf("expected stored health snapshot")
	}
	if got := snapshot.ErrorRate + snapshot.SuccessRate; got != 1 {
		t.Fatalf("expected error+success rate == 1, got %f", got)
	}
}

func TestMetricSummaryWindow(t *testing.T) {
	collector := NewCollector(nil, 0)
	for _, v := range []float64{1, 2, 3, 10} {
		collector.RecordMetric("search.latency", v, nil, nil)
	}

	summary := collector.MetricSummary("search.latency", time.Minute)
	if summary.Count != 4 {
		t.Fatalf("expected 4 points, got %d", summary.Count)
	}
	if summary.Min != 1 || summary.Max != 10 || summary.Latest != 10 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Avg != 4 {
		t.Fatalf("expected avg 4, got %f", summary.Avg)
	}
}

func TestCounterCanonicalTagKeys(t *testing.T) {
	collector := NewCollector(nil, 0)
	collector.IncrementCounter("requests", 1, map[string]string{"a": "1", "b": "2"})
	collector.IncrementCounter("requests", 2, map[string]string{"b": "2", "a": "1"})

	perf := collector.PerformanceSummary()
	if got := perf.Counters["requests{a=1,b=2}"]; got != 3 {
		t.Fatalf("expected tag order independence, got counters %v", perf.Counters)
	}
}

func TestErrorSummaryAndCleanup(t *testing.T) {
	collector := NewCollector(nil, 0)
	collector.RecordError("vector_search", "timeout", "deadline exceeded", nil)
	collector.RecordError("vector_search", "connection", "reset by peer", nil)
	collector.RecordError("classifier", "timeout", "deadline exceeded", nil)

	summary := collector.ErrorSummary(time.Minute)
	if summary.TotalErrors != 3 {
		t.Fatalf("expected 3 errors, got %d", summary.TotalErrors)
	}
	if summary.ByService["vector_search"] != 2 || summary.ByType["timeout"] != 2 {
		t.Fatalf("unexpected error summary: %+v", summary)
	}

	// Everything is fresh, so a 24h cleanup purges nothing.
	if purged := collector.CleanupOldData(24 * time.Hour); purged != 0 {
		t.Fatalf("expected no purged records, got %d", purged)
	}
}

func TestErrorSummaryCountsBeyondDetailCap(t *testing.T) {
	collector := NewCollector(nil, 0)
	for i := 0; i < 120; i++ {
		collector.RecordError("vector_search", "timeout", "deadline exceeded", nil)
	}

	summary := collector.ErrorSummary(time.Hour)
	if summary.TotalErrors != 120 {
		t.Fatalf("expected 120 errors, got %d", summary.TotalErrors)
	}
	if summary.ByService["vector_search"] != 120 || summary.ByType["timeout"] != 120 {
		t.Fatalf("unexpected error counts: %+v", summary)
	}
	// Detail records stay capped; only the counters keep the full count.
	if len(summary.Recent) != 50 {
		t.Fatalf("expected 50 retained detail records, got %d", len(summary.Recent))
	}
}

func TestRecordTimingPerformanceSummary(t *testing.T) {
	collector := NewCollector(nil, 0)
	for i := 1; i <= 150; i++ {
		collector.RecordTiming("vision.analyze", time.Duration(i)*time.Millisecond, nil)
	}

	perf := collector.PerformanceSummary()
	timing, ok := perf.Timings["vision.analyze"]
	if !ok {
		t.Fatalf("expected timing summary to exist")
	}
	if timing.Count != 100 {
		t.Fatalf("expected timing list capped at 100, got %d", timing.Count)
	}
	if timing.P95 < timing.Avg {
		t.Fatalf("expected p95 >= avg, got p95=%v avg=%v", timing.P95, timing.Avg)
	}
}

func TestConcurrentRecordMetricBounded(t *testing.T) {
	const writers = 20
	const perWriter = 50

	collector := NewCollector(nil, 100)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				collector.RecordMetric("stress", float64(i), nil, nil)
			}
		}()
	}
	wg.Wait()

	if got := collector.PointCount("stress"); got != 100 {
		t.Fatalf("expected buffer of exactly 100 points, got %d", got)
	}
}

func serviceName(i int) string {
	names := []string{"vision_analysis", "vector_search", "classifier", "demographic_search"}
	return names[i%len(names)]
}
