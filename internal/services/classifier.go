package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glowlens/glowlens-reliability/internal/models"
	"github.com/glowlens/glowlens-reliability/internal/monitor"
	"github.com/glowlens/glowlens-reliability/internal/recovery"
	"github.com/glowlens/glowlens-reliability/internal/utils"
)

// Classifier defines the downstream operations the classifier wrapper needs.
type Classifier interface {
	Classify(ctx context.Context, analysis models.VisionAnalysis) (models.Classification, error)
	IsAvailable() bool
}

// ClassifierService wraps the classification capability. Under graceful
// degradation it returns the registered reduced-fidelity verdict instead of
// failing the whole pipeline.
type ClassifierService struct {
	logger   *slog.Logger
	client   Classifier
	recovery *recovery.Manager
	monitor  *monitor.ServiceMonitor
}

// NewClassifierService constructs the wrapper.
func NewClassifierService(logger *slog.Logger, client Classifier, rec *recovery.Manager, mon *monitor.ServiceMonitor) *ClassifierService {
	return &ClassifierService{
		logger:   utils.ComponentLogger(logger, "classifier-service"),
		client:   client,
		recovery: rec,
		monitor:  mon,
	}
}

// Classify produces a verdict for a completed analysis.
func (s *ClassifierService) Classify(ctx context.Context, analysis models.VisionAnalysis) (models.Classification, error) {
	if len(analysis.Embedding) == 0 {
		return models.Classification{}, &recovery.InvalidInputError{
			Service: ServiceClassifier, Operation: "classify", Field: "embedding", Reason: "must not be empty",
		}
	}

	result, err := execute(ctx, s.monitor, s.recovery, ServiceClassifier, "classify", func(ctx context.Context) (any, error) {
		if !s.client.IsAvailable() {
			return nil, &recovery.UnavailableError{Service: ServiceClassifier}
		}
		return s.client.Classify(ctx, analysis)
	})
	if err != nil {
		s.logger.Error("classification failed", slog.String("image_id", analysis.ImageID), slog.Any("error", err))
		return models.Classification{}, err
	}

	classification, ok := result.Value.(models.Classification)
	if !ok {
		return models.Classification{}, fmt.Errorf("classification produced unexpected result type %T", result.Value)
	}
	if result.Outcome != recovery.OutcomePrimary {
		classification.Degraded = true
	}
	return classification, nil
}
