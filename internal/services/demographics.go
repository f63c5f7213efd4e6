package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glowlens/glowlens-reliability/internal/cache"
	"github.com/glowlens/glowlens-reliability/internal/models"
	"github.com/glowlens/glowlens-reliability/internal/monitor"
	"github.com/glowlens/glowlens-reliability/internal/recovery"
	"github.com/glowlens/glowlens-reliability/internal/utils"
)

// Relative contribution of each profile attribute to the pairwise weight.
const (
	ethnicityWeight = 0.5
	skinTypeWeight  = 0.3
	ageGroupWeight  = 0.2
)

// DemographicSearcher defines the downstream operations the demographics
// wrapper needs.
type DemographicSearcher interface {
	ByProfile(ctx context.Context, profile models.DemographicProfile, limit int) ([]models.SearchMatch, error)
	IsAvailable() bool
}

// DemographicService wraps profile-filtered search and owns the pairwise
// weighting computation with its LRU cache.
type DemographicService struct {
	logger   *slog.Logger
	client   DemographicSearcher
	recovery *recovery.Manager
	monitor  *monitor.ServiceMonitor
	weights  *cache.DemographicWeightingCache
}

// NewDemographicService constructs the wrapper.
func NewDemographicService(logger *slog.Logger, client DemographicSearcher, rec *recovery.Manager, mon *monitor.ServiceMonitor, weights *cache.DemographicWeightingCache) *DemographicService {
	return &DemographicService{
		logger:   utils.ComponentLogger(logger, "demographic-service"),
		client:   client,
		recovery: rec,
		monitor:  mon,
		weights:  weights,
	}
}

// Search returns stored records matching a demographic profile.
func (s *DemographicService) Search(ctx context.Context, profile models.DemographicProfile, limit int) ([]models.SearchMatch, error) {
	if profile == (models.DemographicProfile{}) {
		return nil, &recovery.InvalidInputError{
			Service: ServiceDemographicSearch, Operation: "search", Field: "profile", Reason: "must set at least one attribute",
		}
	}
	if limit < 0 || limit > maxSearchLimit {
		return nil, &recovery.InvalidInputError{
			Service: ServiceDemographicSearch, Operation: "search", Field: "limit",
			Reason: fmt.Sprintf("must be between 0 and %d", maxSearchLimit),
		}
	}

	result, err := execute(ctx, s.monitor, s.recovery, ServiceDemographicSearch, "search", func(ctx context.Context) (any, error) {
		if !s.client.IsAvailable() {
			return nil, &recovery.UnavailableError{Service: ServiceDemographicSearch}
		}
		return s.client.ByProfile(ctx, profile, limit)
	})
	if err != nil {
		s.logger.Error("demographic search failed", slog.Any("error", err))
		return nil, err
	}

	matches, ok := result.Value.([]models.SearchMatch)
	if !ok {
		return nil, fmt.Errorf("demographic search produced unexpected result type %T", result.Value)
	}
	return matches, nil
}

// Weight returns the pairwise demographic weight for two profiles, serving
// repeated pairs from the cache. The weight is symmetric.
func (s *DemographicService) Weight(a, b models.DemographicProfile) float64 {
	if s.weights != nil {
		if weight, ok := s.weights.Get(a, b); ok {
			return weight
		}
	}

	weight := computeWeight(a, b)
	if s.weights != nil {
		s.weights.Set(a, b, weight)
	}
	return weight
}

// WeightCacheStats exposes weighting cache diagnostics for the dashboard.
func (s *DemographicService) WeightCacheStats() map[string]any {
	if s.weights == nil {
		return nil
	}
	return s.weights.Stats()
}

// CleanupExpiredWeights sweeps expired weighting entries and reports how many
// were removed.
func (s *DemographicService) CleanupExpiredWeights() int {
	if s.weights == nil {
		return 0
	}
	return s.weights.CleanupExpired()
}

// computeWeight scores how strongly two profiles should reinforce a match.
// Attributes compare case-sensitively; empty attributes never match.
func computeWeight(a, b models.DemographicProfile) float64 {
	weight := 0.0
	if a.Ethnicity != "" && a.Ethnicity == b.Ethnicity {
		weight += ethnicityWeight
	}
	if a.SkinType != "" && a.SkinType == b.SkinType {
		weight += skinTypeWeight
	}
	if a.AgeGroup != "" && a.AgeGroup == b.AgeGroup {
		weight += ageGroupWeight
	}
	return weight
}
