package metrics

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/models"
	"github.com/glowlens/glowlens-reliability/internal/utils"
)

const (
	// DefaultPointCapacity bounds each named time series.
	DefaultPointCapacity = 1000
	// timingSampleCap bounds each keyed timing list to the most recent samples.
	timingSampleCap = 100
	// errorDetailCap bounds retained error records per service.
	errorDetailCap = 50
)

// Collector is a thread-safe store of bounded time-series points, counters,
// timers, error records, and per-service health snapshots. Recording never
// fails and never blocks beyond a short critical section.
type Collector struct {
	mu sync.RWMutex

	logger        *slog.Logger
	pointCapacity int

	points        map[string][]models.MetricPoint
	counters      map[string]int64
	timings       map[string]*utils.LatencyTracker
	errorCounters map[string]map[string]int64 // service → errorType → count
	errorDetails  map[string][]models.ErrorRecord
	health        map[string]models.ServiceHealth
}

// NewCollector constructs a collector with the given per-series capacity.
// A non-positive capacity falls back to DefaultPointCapacity.
func NewCollector(logger *slog.Logger, pointCapacity int) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if pointCapacity <= 0 {
		pointCapacity = DefaultPointCapacity
	}
	return &Collector{
		logger:        logger,
		pointCapacity: pointCapacity,
		points:        make(map[string][]models.MetricPoint),
		counters:      make(map[string]int64),
		timings:       make(map[string]*utils.LatencyTracker),
		errorCounters: make(map[string]map[string]int64),
		errorDetails:  make(map[string][]models.ErrorRecord),
		health:        make(map[string]models.ServiceHealth),
	}
}

// RecordMetric appends a point to the named bounded series, dropping the
// oldest sample on overflow.
func (c *Collector) RecordMetric(name string, value float64, tags map[string]string, metadata map[string]any) {
	point := models.MetricPoint{
		Timestamp: time.Now().UTC(),
		Value:     value,
		Tags:      tags,
		Metadata:  metadata,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendPointLocked(name, point)
}

// IncrementCounter accumulates delta into the counter keyed by name and the
// canonicalized tag set, mirroring the increment as a metric point.
func (c *Collector) IncrementCounter(name string, delta int64, tags map[string]string) {
	key := canonicalKey(name, tags)

	c.mu.Lock()
	c.counters[key] += delta
	c.appendPointLocked(name, models.MetricPoint{
		Timestamp: time.Now().UTC(),
		Value:     float64(delta),
		Tags:      tags,
	})
	c.mu.Unlock()
}

// RecordTiming appends a duration sample to the keyed timing list, capped at
// the most recent samples, and mirrors it as a metric point in seconds.
func (c *Collector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	key := canonicalKey(name, tags)

	c.mu.Lock()
	tracker, ok := c.timings[key]
	if !ok {
		tracker = utils.NewLatencyTracker(timingSampleCap)
		c.timings[key] = tracker
	}
	c.appendPointLocked(name, models.MetricPoint{
		Timestamp: time.Now().UTC(),
		Value:     duration.Seconds(),
		Tags:      tags,
	})
	c.mu.Unlock()

	// The tracker has its own lock; keep it out of the collector's section.
	tracker.Observe(duration)
}

// RecordError increments the (service, errorType) error counter and appends a
// capped detail record.
func (c *Collector) RecordError(service, errorType, message string, tags map[string]string) {
	record := models.ErrorRecord{
		Timestamp: time.Now().UTC(),
		Service:   service,
		ErrorType: errorType,
		Message:   message,
		Tags:      tags,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byType := c.errorCounters[service]
	if byType == nil {
		byType = make(map[string]int64)
		c.errorCounters[service] = byType
	}
	byType[errorType]++

	details := append(c.errorDetails[service], record)
	if len(details) > errorDetailCap {
		details = details[len(details)-errorDetailCap:]
	}
	c.errorDetails[service] = details
}

// UpdateServiceHealth overwrites the stored health state for a service.
func (c *Collector) UpdateServiceHealth(service string, status models.HealthStatus, responseTime time.Duration, errorRate float64, details map[string]any) {
	snapshot := models.ServiceHealth{
		ServiceName:  service,
		Status:       status,
		LastCheck:    time.Now().UTC(),
		ResponseTime: responseTime,
		ErrorRate:    errorRate,
		SuccessRate:  1 - errorRate,
		Details:      details,
	}

	c.mu.Lock()
	c.health[service] = snapshot
	c.mu.Unlock()
}

// ServiceHealth returns the stored snapshot for one service.
func (c *Collector) ServiceHealth(service string) (models.ServiceHealth, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot, ok := c.health[service]
	return snapshot, ok
}

// MetricSummary aggregates points of one series newer than the window cutoff.
func (c *Collector) MetricSummary(name string, window time.Duration) models.MetricSummary {
	cutoff := time.Now().UTC().Add(-window)
	summary := models.MetricSummary{Name: name, Window: window}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, point := range c.points[name] {
		if point.Timestamp.Before(cutoff) {
			continue
		}
		if summary.Count == 0 || point.Value < summary.Min {
			summary.Min = point.Value
		}
		if summary.Count == 0 || point.Value > summary.Max {
			summary.Max = point.Value
		}
		summary.Avg += point.Value
		summary.Latest = point.Value
		summary.Count++
	}
	if summary.Count > 0 {
		summary.Avg /= float64(summary.Count)
	}
	return summary
}

// ServiceHealthSummary aggregates every service's state into one overall
// status: unhealthy if any service is unhealthy, else degraded if any is
// degraded, else healthy.
func (c *Collector) ServiceHealthSummary() models.HealthSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	services := make(map[string]models.ServiceHealth, len(c.health))
	overall := models.StatusHealthy
	for name, snapshot := range c.health {
		services[name] = snapshot
		switch snapshot.Status {
		case models.StatusUnhealthy:
			overall = models.StatusUnhealthy
		case models.StatusDegraded:
			if overall != models.StatusUnhealthy {
				overall = models.StatusDegraded
			}
		}
	}

	return models.HealthSummary{
		OverallStatus: overall,
		Services:      services,
		GeneratedAt:   time.Now().UTC(),
	}
}

// ErrorSummary reports the cumulative (service, errorType) error counters
// plus the recent detail records inside the window. Counts come from the
// counters so they are not clipped by the per-service detail cap.
func (c *Collector) ErrorSummary(window time.Duration) models.ErrorSummary {
	cutoff := time.Now().UTC().Add(-window)
	summary := models.ErrorSummary{
		Window:    window,
		ByService: make(map[string]int),
		ByType:    make(map[string]int),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for service, byType := range c.errorCounters {
		for errorType, count := range byType {
			summary.TotalErrors += int(count)
			summary.ByService[service] += int(count)
			summary.ByType[errorType] += int(count)
		}
	}
	for _, details := range c.errorDetails {
		for _, record := range details {
			if record.Timestamp.Before(cutoff) {
				continue
			}
			summary.Recent = append(summary.Recent, record)
		}
	}
	sort.Slice(summary.Recent, func(i, j int) bool {
		return summary.Recent[i].Timestamp.Before(summary.Recent[j].Timestamp)
	})
	return summary
}

// PerformanceSummary exposes counters and timing percentiles.
func (c *Collector) PerformanceSummary() models.PerformanceSummary {
	c.mu.RLock()
	counters := make(map[string]int64, len(c.counters))
	for key, value := range c.counters {
		counters[key] = value
	}
	trackers := make(map[string]*utils.LatencyTracker, len(c.timings))
	for key, tracker := range c.timings {
		trackers[key] = tracker
	}
	c.mu.RUnlock()

	timings := make(map[string]models.TimingSummary, len(trackers))
	for key, tracker := range trackers {
		timings[key] = models.TimingSummary{
			Count: tracker.Count(),
			Avg:   tracker.Average(),
			P95:   tracker.Percentile(95),
			Max:   tracker.Max(),
		}
	}

	return models.PerformanceSummary{Counters: counters, Timings: timings}
}

// CleanupOldData purges metric points and error details older than maxAge and
// returns the number of purged records.
func (c *Collector) CleanupOldData(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	purged := 0

	c.mu.Lock()
	defer c.mu.Unlock()

	for name, series := range c.points {
		kept := series[:0]
		for _, point := range series {
			if point.Timestamp.Before(cutoff) {
				purged++
				continue
			}
			kept = append(kept, point)
		}
		if len(kept) == 0 {
			delete(c.points, name)
			continue
		}
		c.points[name] = kept
	}

	for service, details := range c.errorDetails {
		kept := details[:0]
		for _, record := range details {
			if record.Timestamp.Before(cutoff) {
				purged++
				continue
			}
			kept = append(kept, record)
		}
		if len(kept) == 0 {
			delete(c.errorDetails, service)
			continue
		}
		c.errorDetails[service] = kept
	}

	if purged > 0 {
		c.logger.Debug("metric cleanup completed", slog.Int("purged", purged))
	}
	return purged
}

// PointCount returns the number of retained points for one series.
func (c *Collector) PointCount(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points[name])
}

func (c *Collector) appendPointLocked(name string, point models.MetricPoint) {
	series := append(c.points[name], point)
	if len(series) > c.pointCapacity {
		series = series[len(series)-c.pointCapacity:]
	}
	c.points[name] = series
}

func canonicalKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%s", k, tags[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
