package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/glowlens/glowlens-reliability/internal/cache"
	"github.com/glowlens/glowlens-reliability/internal/models"
	"github.com/glowlens/glowlens-reliability/internal/utils"
)

// defaultMatchLimit bounds how many matches a report carries.
const defaultMatchLimit = 10

// VisionAnalyzer runs per-image analysis.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, imageID string, image []byte) (models.VisionAnalysis, error)
}

// Searcher runs embedding similarity search.
type Searcher interface {
	Search(ctx context.Context, query models.SearchQuery) ([]models.SearchMatch, error)
}

// Classifier produces the final verdict for an analysis.
type Classifier interface {
	Classify(ctx context.Context, analysis models.VisionAnalysis) (models.Classification, error)
}

// DemographicMatcher runs profile-filtered search and pairwise weighting.
type DemographicMatcher interface {
	Search(ctx context.Context, profile models.DemographicProfile, limit int) ([]models.SearchMatch, error)
	Weight(a, b models.DemographicProfile) float64
}

// Archiver persists completed analyses for future searches.
type Archiver interface {
	StoreAnalysis(ctx context.Context, analysis models.VisionAnalysis) error
}

// Pipeline orchestrates the end-to-end image analysis flow: vision analysis,
// concurrent search and classification, demographic re-ranking, and report
// assembly. Search and demographic failures degrade the report instead of
// failing it; only vision analysis is load-bearing.
type Pipeline struct {
	logger       *slog.Logger
	vision       VisionAnalyzer
	search       Searcher
	classifier   Classifier
	demographics DemographicMatcher
	archive      Archiver
	similarities *cache.VectorSimilarityCache
	latencies    *utils.LatencyTracker
}

// NewPipeline constructs the analysis pipeline.
func NewPipeline(
	logger *slog.Logger,
	vision VisionAnalyzer,
	search Searcher,
	classifier Classifier,
	demographics DemographicMatcher,
	archive Archiver,
	similarities *cache.VectorSimilarityCache,
) *Pipeline {
	return &Pipeline{
		logger:       utils.ComponentLogger(logger, "analysis-pipeline"),
		vision:       vision,
		search:       search,
		classifier:   classifier,
		demographics: demographics,
		archive:      archive,
		similarities: similarities,
		latencies:    utils.NewLatencyTracker(1024),
	}
}

// AnalyzeImage runs the full flow for one image and assembles the report.
func (p *Pipeline) AnalyzeImage(ctx context.Context, imageID string, image []byte) (models.AnalysisReport, error) {
	if p.vision == nil {
		return models.AnalysisReport{}, fmt.Errorf("vision analyzer not configured")
	}

	start := time.Now()

	analysis, err := p.vision.Analyze(ctx, imageID, image)
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("analyze image: %w", err)
	}

	var (
		matches      []models.SearchMatch
		demographic  []models.SearchMatch
		verdict      models.Classification
		searchFailed bool
		demoFailed   bool
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if p.search == nil {
			return nil
		}
		found, err := p.search.Search(groupCtx, models.SearchQuery{
			Embedding: analysis.Embedding,
			Limit:     defaultMatchLimit,
		})
		if err != nil {
			p.logger.Warn("similarity search failed, continuing without matches",
				slog.String("image_id", imageID), slog.Any("error", err))
			searchFailed = true
			return nil
		}
		matches = found
		return nil
	})

	group.Go(func() error {
		if p.demographics == nil {
			return nil
		}
		found, err := p.demographics.Search(groupCtx, analysis.Profile, defaultMatchLimit)
		if err != nil {
			p.logger.Warn("demographic search failed, continuing without matches",
				slog.String("image_id", imageID), slog.Any("error", err))
			demoFailed = true
			return nil
		}
		demographic = found
		return nil
	})

	group.Go(func() error {
		if p.classifier == nil {
			return nil
		}
		result, err := p.classifier.Classify(groupCtx, analysis)
		if err != nil {
			return fmt.Errorf("classify image: %w", err)
		}
		verdict = result
		return nil
	})

	if err := group.Wait(); err != nil {
		return models.AnalysisReport{}, err
	}

	ranked := p.rankMatches(analysis.Profile, mergeMatches(matches, demographic))

	report := models.AnalysisReport{
		ReportID:       uuid.NewString(),
		ImageID:        imageID,
		Analysis:       analysis,
		Matches:        ranked,
		Classification: verdict,
		Degraded:       searchFailed || demoFailed || verdict.Degraded,
		CreatedAt:      time.Now().UTC(),
	}

	if p.archive != nil {
		if err := p.archive.StoreAnalysis(ctx, analysis); err != nil {
			p.logger.Warn("failed to archive analysis", slog.String("image_id", imageID), slog.Any("error", err))
		}
	}

	duration := time.Since(start)
	p.latencies.Observe(duration)
	if count := p.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := p.latencies.Percentile(95)
		p.logger.Info("analysis latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	return report, nil
}

// Similarity computes the cosine similarity of two embeddings, serving
// repeated pairs from the symmetric cache. Mismatched or empty vectors score
// zero.
func (p *Pipeline) Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	if p.similarities != nil {
		if score, ok := p.similarities.Get(a, b); ok {
			return score
		}
	}

	score := cosineSimilarity(a, b)
	if p.similarities != nil {
		p.similarities.Set(a, b, score)
	}
	return score
}

// LatencyP95 reports the current p95 end-to-end analysis latency.
func (p *Pipeline) LatencyP95() time.Duration {
	if p.latencies == nil {
		return 0
	}
	return p.latencies.Percentile(95)
}

// rankMatches orders matches by similarity boosted by demographic affinity to
// the query profile.
func (p *Pipeline) rankMatches(profile models.DemographicProfile, matches []models.SearchMatch) []models.SearchMatch {
	if len(matches) == 0 {
		return matches
	}

	type scored struct {
		match models.SearchMatch
		score float64
	}
	ranked := make([]scored, 0, len(matches))
	for _, match := range matches {
		weight := 0.0
		if p.demographics != nil {
			weight = p.demographics.Weight(profile, match.Profile)
		}
		ranked = append(ranked, scored{match: match, score: match.Similarity * (1 + weight)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	result := make([]models.SearchMatch, 0, len(ranked))
	for _, entry := range ranked {
		result = append(result, entry.match)
	}
	if len(result) > defaultMatchLimit {
		result = result[:defaultMatchLimit]
	}
	return result
}

// mergeMatches combines the two search sources, keeping the higher-similarity
// entry when a record appears in both.
func mergeMatches(primary, secondary []models.SearchMatch) []models.SearchMatch {
	merged := make([]models.SearchMatch, 0, len(primary)+len(secondary))
	seen := make(map[string]int, len(primary))

	for _, match := range primary {
		seen[match.RecordID] = len(merged)
		merged = append(merged, match)
	}
	for _, match := range secondary {
		if idx, ok := seen[match.RecordID]; ok {
			if match.Similarity > merged[idx].Similarity {
				merged[idx] = match
			}
			continue
		}
		seen[match.RecordID] = len(merged)
		merged = append(merged, match)
	}
	return merged
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
