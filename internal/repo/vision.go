package repo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

// availabilityCacheTTL bounds how often the health probe hits the wire.
const availabilityCacheTTL = 5 * time.Second

// VisionClient wraps the vision analysis API: per-image analysis and
// classification. It satisfies the capability contract consumed by the
// service wrappers.
type VisionClient struct {
	baseURL      string
	analyzePath  string
	classifyPath string
	healthPath   string
	httpClient   *http.Client

	mu            sync.Mutex
	available     bool
	lastAvailable time.Time
}

// NewVisionClient constructs a client targeting the configured vision API.
func NewVisionClient(baseURL, analyzePath, classifyPath, healthPath string, timeout time.Duration) *VisionClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &VisionClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		analyzePath:  analyzePath,
		classifyPath: classifyPath,
		healthPath:   healthPath,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// IsAvailable reports the coarse availability flag, probing the health
// endpoint at most once per cache interval.
func (c *VisionClient) IsAvailable() bool {
	if c == nil || c.baseURL == "" {
		return false
	}

	c.mu.Lock()
	if time.Since(c.lastAvailable) < availabilityCacheTTL {
		available := c.available
		c.mu.Unlock()
		return available
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolvePath(c.healthPath), nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	available := err == nil && resp.StatusCode == http.StatusOK
	if resp != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	c.available = available
	c.lastAvailable = time.Now()
	c.mu.Unlock()
	return available
}

// Analyze submits an image for vision analysis.
func (c *VisionClient) Analyze(ctx context.Context, imageID string, image []byte) (models.VisionAnalysis, error) {
	if c == nil {
		return models.VisionAnalysis{}, fmt.Errorf("vision client not initialised")
	}
	if c.baseURL == "" {
		return models.VisionAnalysis{}, fmt.Errorf("vision API base URL not configured")
	}

	payload := map[string]any{
		"image_id": imageID,
		"image":    base64.StdEncoding.EncodeToString(image),
	}

	var response struct {
		ImageID    string             `json:"image_id"`
		Embedding  []float32          `json:"embedding"`
		Attributes map[string]float64 `json:"attributes"`
		Profile    struct {
			Ethnicity string `json:"ethnicity"`
			SkinType  string `json:"skin_type"`
			AgeGroup  string `json:"age_group"`
		} `json:"profile"`
	}

	if err := c.postJSON(ctx, c.resolvePath(c.analyzePath), payload, &response); err != nil {
		return models.VisionAnalysis{}, fmt.Errorf("vision analyze request failed: %w", err)
	}
	if len(response.Embedding) == 0 {
		return models.VisionAnalysis{}, fmt.Errorf("vision analyze returned no embedding")
	}

	return models.VisionAnalysis{
		ImageID:    response.ImageID,
		Embedding:  response.Embedding,
		Attributes: response.Attributes,
		Profile: models.DemographicProfile{
			Ethnicity: response.Profile.Ethnicity,
			SkinType:  response.Profile.SkinType,
			AgeGroup:  response.Profile.AgeGroup,
		},
		AnalyzedAt: time.Now().UTC(),
	}, nil
}

// Classify asks the classifier stage for a verdict on a completed analysis.
func (c *VisionClient) Classify(ctx context.Context, analysis models.VisionAnalysis) (models.Classification, error) {
	if c == nil {
		return models.Classification{}, fmt.Errorf("vision client not initialised")
	}
	if c.baseURL == "" {
		return models.Classification{}, fmt.Errorf("vision API base URL not configured")
	}

	payload := map[string]any{
		"image_id":   analysis.ImageID,
		"embedding":  analysis.Embedding,
		"attributes": analysis.Attributes,
	}

	var response struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}

	if err := c.postJSON(ctx, c.resolvePath(c.classifyPath), payload, &response); err != nil {
		return models.Classification{}, fmt.Errorf("classification request failed: %w", err)
	}
	if response.Label == "" {
		return models.Classification{}, fmt.Errorf("classifier returned no label")
	}

	return models.Classification{Label: response.Label, Confidence: response.Confidence}, nil
}

func (c *VisionClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *VisionClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision API returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
