package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/alerting"
	"github.com/glowlens/glowlens-reliability/internal/cache"
	"github.com/glowlens/glowlens-reliability/internal/engine"
	"github.com/glowlens/glowlens-reliability/internal/metrics"
	"github.com/glowlens/glowlens-reliability/internal/models"
	"github.com/glowlens/glowlens-reliability/internal/monitor"
	"github.com/glowlens/glowlens-reliability/internal/recovery"
	"github.com/glowlens/glowlens-reliability/internal/services"
)

type fakeVisionClient struct{}

func (fakeVisionClient) Analyze(_ context.Context, imageID string, _ []byte) (models.VisionAnalysis, error) {
	return models.VisionAnalysis{
		ImageID:   imageID,
		Embedding: []float32{0.1, 0.2},
		Profile:   models.DemographicProfile{Ethnicity: "white", SkinType: "type_2", AgeGroup: "25-34"},
	}, nil
}

func (fakeVisionClient) IsAvailable() bool { return true }

type fakeSearchClient struct{}

func (fakeSearchClient) Similar(_ context.Context, _ models.SearchQuery) ([]models.SearchMatch, error) {
	return []models.SearchMatch{{RecordID: "rec-1", Similarity: 0.9}}, nil
}

func (fakeSearchClient) IsAvailable() bool { return true }

type fakeClassifierClient struct{}

func (fakeClassifierClient) Classify(_ context.Context, _ models.VisionAnalysis) (models.Classification, error) {
	return models.Classification{Label: "cool_summer", Confidence: 0.8}, nil
}

func (fakeClassifierClient) IsAvailable() bool { return true }

type fakeDemographicClient struct{}

func (fakeDemographicClient) ByProfile(_ context.Context, _ models.DemographicProfile, _ int) ([]models.SearchMatch, error) {
	return nil, nil
}

func (fakeDemographicClient) IsAvailable() bool { return true }

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	collector := metrics.NewCollector(nil, 100)
	rec := recovery.NewManager(nil)
	alerts := alerting.NewManager(nil, collector, alerting.DefaultRules())

	vision := services.NewVisionService(nil, fakeVisionClient{}, rec,
		monitor.NewServiceMonitor(services.ServiceVisionAnalysis, collector, nil))
	search := services.NewSearchService(nil, fakeSearchClient{}, rec,
		monitor.NewServiceMonitor(services.ServiceVectorSearch, collector, nil),
		cache.NewSearchResultCache(10, nil, 0, nil))
	classifier := services.NewClassifierService(nil, fakeClassifierClient{}, rec,
		monitor.NewServiceMonitor(services.ServiceClassifier, collector, nil))
	demographics := services.NewDemographicService(nil, fakeDemographicClient{}, rec,
		monitor.NewServiceMonitor(services.ServiceDemographicSearch, collector, nil),
		cache.NewDemographicWeightingCache(10, time.Minute))

	stack := services.NewStack(nil, vision, search, classifier, demographics,
		collector, alerts, rec, cache.NewVectorSimilarityCache(10, time.Minute))

	pipeline := engine.NewPipeline(nil, vision, search, classifier, demographics, nil,
		cache.NewVectorSimilarityCache(10, time.Minute))

	return NewHandler(nil, stack, pipeline)
}

func TestHandleAnalyze(t *testing.T) {
	handler := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	payload, _ := json.Marshal(analyzeRequest{
		ImageID: "img-1",
		Image:   base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
	})

	resp, err := http.Post(server.URL+"/api/v1/analyze", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var report models.AnalysisReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ImageID != "img-1" || report.Classification.Label != "cool_summer" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Matches) != 1 {
		t.Fatalf("unexpected matches: %+v", report.Matches)
	}
}

func TestHandleAnalyzeRejectsBadPayload(t *testing.T) {
	handler := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/analyze", "application/json",
		bytes.NewReader([]byte(`{"image_id":"img-1","image":"not-base64!!!"}`)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandleAnalyzeInvalidInput(t *testing.T) {
	handler := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	// Empty image decodes to zero bytes and is rejected by the wrapper.
	payload, _ := json.Marshal(analyzeRequest{ImageID: "img-1", Image: ""})
	resp, err := http.Post(server.URL+"/api/v1/analyze", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty image, got %d", resp.StatusCode)
	}
}

func TestHandleStatsAndDashboard(t *testing.T) {
	handler := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	for _, path := range []string{"/api/v1/stats", "/api/v1/dashboard"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode body: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", path, resp.StatusCode)
		}
		if _, ok := body["health"]; !ok {
			t.Fatalf("%s: missing health section: %v", path, body)
		}
	}
}

func TestHandleAlerts(t *testing.T) {
	handler := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/alerts?limit=5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	for _, key := range []string{"active", "recent"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing %q: %v", key, body)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/analyze")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
