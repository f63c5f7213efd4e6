package services

import (
	"context"
	"errors"
	"testing"

	"github.com/glowlens/glowlens-reliability/internal/models"
	"github.com/glowlens/glowlens-reliability/internal/recovery"
)

func TestClassifierServiceClassify(t *testing.T) {
	client := &fakeClassifier{
		available: true,
		result:    models.Classification{Label: "cool_summer", Confidence: 0.87},
	}
	rec, mon, _ := newTestHarness(t, ServiceClassifier, fastRetryConfig())
	svc := NewClassifierService(nil, client, rec, mon)

	verdict, err := svc.Classify(context.Background(), models.VisionAnalysis{
		ImageID:   "img-1",
		Embedding: []float32{0.1, 0.2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Label != "cool_summer" || verdict.Degraded {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestClassifierServiceRejectsEmptyEmbedding(t *testing.T) {
	client := &fakeClassifier{available: true}
	rec, mon, _ := newTestHarness(t, ServiceClassifier, fastRetryConfig())
	svc := NewClassifierService(nil, client, rec, mon)

	var invalid *recovery.InvalidInputError
	_, err := svc.Classify(context.Background(), models.VisionAnalysis{ImageID: "img-1"})
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("invalid input must not reach the client; calls=%d", client.calls)
	}
}

func TestClassifierServiceDegradedVerdict(t *testing.T) {
	client := &fakeClassifier{available: true, err: errors.New("model crashed")}
	cfg := fastRetryConfig()
	cfg.Strategy = models.StrategyGracefulDegradation
	rec, mon, _ := newTestHarness(t, ServiceClassifier, cfg)
	rec.RegisterDegradedResult(ServiceClassifier, models.Classification{
		Label:      "unclassified",
		Confidence: 0,
	})
	svc := NewClassifierService(nil, client, rec, mon)

	verdict, err := svc.Classify(context.Background(), models.VisionAnalysis{
		ImageID:   "img-2",
		Embedding: []float32{0.5},
	})
	if err != nil {
		t.Fatalf("expected degraded verdict, got error: %v", err)
	}
	if !verdict.Degraded {
		t.Fatal("expected Degraded flag on non-primary verdict")
	}
	if verdict.Label != "unclassified" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}
