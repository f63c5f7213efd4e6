package services

import (
	"log/slog"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/alerting"
	"github.com/glowlens/glowlens-reliability/internal/cache"
	"github.com/glowlens/glowlens-reliability/internal/metrics"
	"github.com/glowlens/glowlens-reliability/internal/models"
	"github.com/glowlens/glowlens-reliability/internal/recovery"
	"github.com/glowlens/glowlens-reliability/internal/utils"
)

// summaryWindow bounds the rolling window used by the stat endpoints.
const summaryWindow = time.Hour

// Stack bundles the wrapped services with the shared observability plumbing
// and exposes the aggregate views the dashboard and API serve.
type Stack struct {
	logger       *slog.Logger
	Vision       *VisionService
	Search       *SearchService
	Classifier   *ClassifierService
	Demographics *DemographicService

	collector   *metrics.Collector
	alerts      *alerting.Manager
	recovery    *recovery.Manager
	vectorCache *cache.VectorSimilarityCache
}

// NewStack assembles the service facade.
func NewStack(logger *slog.Logger, vision *VisionService, search *SearchService, classifier *ClassifierService, demographics *DemographicService,
	collector *metrics.Collector, alerts *alerting.Manager, rec *recovery.Manager, vectorCache *cache.VectorSimilarityCache) *Stack {
	return &Stack{
		logger:       utils.ComponentLogger(logger, "service-stack"),
		Vision:       vision,
		Search:       search,
		Classifier:   classifier,
		Demographics: demographics,
		collector:    collector,
		alerts:       alerts,
		recovery:     rec,
		vectorCache:  vectorCache,
	}
}

// ActiveAlerts returns the currently firing alerts.
func (s *Stack) ActiveAlerts() []models.Alert {
	return s.alerts.ActiveAlerts()
}

// RecentAlerts returns up to limit entries from the alert history.
func (s *Stack) RecentAlerts(limit int) []models.Alert {
	return s.alerts.AlertHistory(limit)
}

// ComprehensiveStats aggregates health, performance, error and breaker state
// for every wrapped service.
func (s *Stack) ComprehensiveStats() map[string]any {
	stats := map[string]any{
		"generated_at": time.Now().UTC(),
		"health":       s.collector.ServiceHealthSummary(),
		"performance":  s.collector.PerformanceSummary(),
		"errors":       s.collector.ErrorSummary(summaryWindow),
	}

	breakers := make(map[string]any)
	for _, snapshot := range s.recovery.BreakerSnapshots() {
		breakers[snapshot.Service] = map[string]any{
			"state":         snapshot.State.String(),
			"failure_count": snapshot.FailureCount,
			"last_failure":  snapshot.LastFailure,
		}
	}
	stats["circuit_breakers"] = breakers

	return stats
}

// MonitoringDashboard is the operator-facing view: stats plus alerting state
// and per-cache diagnostics.
func (s *Stack) MonitoringDashboard() map[string]any {
	dashboard := s.ComprehensiveStats()

	dashboard["active_alerts"] = s.alerts.ActiveAlerts()
	dashboard["recent_alerts"] = s.alerts.AlertHistory(50)

	caches := make(map[string]any)
	if s.Search != nil {
		if stats := s.Search.CacheStats(); stats != nil {
			caches["search_results"] = stats
		}
	}
	if s.Demographics != nil {
		if stats := s.Demographics.WeightCacheStats(); stats != nil {
			caches["demographic_weights"] = stats
		}
	}
	if s.vectorCache != nil {
		caches["vector_similarity"] = s.vectorCache.Stats()
	}
	dashboard["caches"] = caches

	return dashboard
}
