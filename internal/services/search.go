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

// VectorSearcher defines the downstream operations the search wrapper needs.
type VectorSearcher interface {
	Similar(ctx context.Context, query models.SearchQuery) ([]models.SearchMatch, error)
	IsAvailable() bool
}

// SearchService wraps vector similarity search with a value-scored result
// cache in front of the recovery policy. Cache hits never touch the
// downstream service.
type SearchService struct {
	logger   *slog.Logger
	client   VectorSearcher
	recovery *recovery.Manager
	monitor  *monitor.ServiceMonitor
	results  *cache.SearchResultCache
}

// NewSearchService constructs the wrapper.
func NewSearchService(logger *slog.Logger, client VectorSearcher, rec *recovery.Manager, mon *monitor.ServiceMonitor, results *cache.SearchResultCache) *SearchService {
	return &SearchService{
		logger:   utils.ComponentLogger(logger, "search-service"),
		client:   client,
		recovery: rec,
		monitor:  mon,
		results:  results,
	}
}

// Search runs a similarity query, serving from cache when possible.
func (s *SearchService) Search(ctx context.Context, query models.SearchQuery) ([]models.SearchMatch, error) {
	if len(query.Embedding) == 0 {
		return nil, &recovery.InvalidInputError{
			Service: ServiceVectorSearch, Operation: "search", Field: "embedding", Reason: "must not be empty",
		}
	}
	if query.Limit < 0 || query.Limit > maxSearchLimit {
		return nil, &recovery.InvalidInputError{
			Service: ServiceVectorSearch, Operation: "search", Field: "limit",
			Reason: fmt.Sprintf("must be between 0 and %d", maxSearchLimit),
		}
	}

	if s.results != nil {
		if matches, ok := s.results.Get(ctx, query); ok {
			return matches, nil
		}
	}

	result, err := execute(ctx, s.monitor, s.recovery, ServiceVectorSearch, "search", func(ctx context.Context) (any, error) {
		if !s.client.IsAvailable() {
			return nil, &recovery.UnavailableError{Service: ServiceVectorSearch}
		}
		return s.client.Similar(ctx, query)
	})
	if err != nil {
		s.logger.Error("vector search failed", slog.Int("limit", query.Limit), slog.Any("error", err))
		return nil, err
	}

	matches, ok := result.Value.([]models.SearchMatch)
	if !ok {
		return nil, fmt.Errorf("vector search produced unexpected result type %T", result.Value)
	}

	// Only primary results are worth caching; fallback and degraded values
	// would pin stale substitutes past the outage that produced them.
	if s.results != nil && result.Outcome == recovery.OutcomePrimary && len(matches) > 0 {
		s.results.Set(ctx, query, matches)
	}
	return matches, nil
}

// CacheStats exposes the result cache diagnostics for the dashboard.
func (s *SearchService) CacheStats() map[string]any {
	if s.results == nil {
		return nil
	}
	return s.results.Stats()
}
