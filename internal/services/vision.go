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

// VisionAnalyzer defines the downstream operations the vision wrapper needs.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, imageID string, image []byte) (models.VisionAnalysis, error)
	IsAvailable() bool
}

// VisionService wraps the vision analysis capability with validation,
// monitoring and the configured recovery policy.
type VisionService struct {
	logger   *slog.Logger
	client   VisionAnalyzer
	recovery *recovery.Manager
	monitor  *monitor.ServiceMonitor
}

// NewVisionService constructs the wrapper.
func NewVisionService(logger *slog.Logger, client VisionAnalyzer, rec *recovery.Manager, mon *monitor.ServiceMonitor) *VisionService {
	return &VisionService{
		logger:   utils.ComponentLogger(logger, "vision-service"),
		client:   client,
		recovery: rec,
		monitor:  mon,
	}
}

// Analyze runs vision analysis for one image under the recovery policy.
func (s *VisionService) Analyze(ctx context.Context, imageID string, image []byte) (models.VisionAnalysis, error) {
	if imageID == "" {
		return models.VisionAnalysis{}, &recovery.InvalidInputError{
			Service: ServiceVisionAnalysis, Operation: "analyze", Field: "image_id", Reason: "must not be empty",
		}
	}
	if len(image) == 0 {
		return models.VisionAnalysis{}, &recovery.InvalidInputError{
			Service: ServiceVisionAnalysis, Operation: "analyze", Field: "image", Reason: "must not be empty",
		}
	}

	result, err := execute(ctx, s.monitor, s.recovery, ServiceVisionAnalysis, "analyze", func(ctx context.Context) (any, error) {
		if !s.client.IsAvailable() {
			return nil, &recovery.UnavailableError{Service: ServiceVisionAnalysis}
		}
		return s.client.Analyze(ctx, imageID, image)
	})
	if err != nil {
		s.logger.Error("vision analysis failed", slog.String("image_id", imageID), slog.Any("error", err))
		return models.VisionAnalysis{}, err
	}

	analysis, ok := result.Value.(models.VisionAnalysis)
	if !ok {
		return models.VisionAnalysis{}, fmt.Errorf("vision analysis produced unexpected result type %T", result.Value)
	}
	return analysis, nil
}
