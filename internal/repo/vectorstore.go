package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/cache"
	"github.com/glowlens/glowlens-reliability/internal/models"
)

// VectorStore provides access to the embedding index: nearest-neighbour
// search over stored analyses plus demographic-filtered lookups.
type VectorStore struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	cache      cache.Provider
	searchTTL  time.Duration
}

// NewVectorStore constructs a vector store client.
func NewVectorStore(endpoint, apiKey string, timeout time.Duration, cacheProvider cache.Provider, searchTTL time.Duration) *VectorStore {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if searchTTL < 0 {
		searchTTL = 0
	}
	return &VectorStore{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		searchTTL:  searchTTL,
	}
}

// IsAvailable reports whether the store is configured and reachable.
func (s *VectorStore) IsAvailable() bool {
	if s == nil || s.endpoint == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/v1/health", nil)
	if err != nil {
		return false
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StoreAnalysis persists a completed analysis into the index.
func (s *VectorStore) StoreAnalysis(ctx context.Context, analysis models.VisionAnalysis) error {
	if s == nil {
		return fmt.Errorf("vector store not initialised")
	}
	if s.endpoint == "" {
		return fmt.Errorf("vector store endpoint not configured")
	}

	payload := map[string]any{
		"class":      "ImageAnalysis",
		"id":         analysis.ImageID,
		"vector":     analysis.Embedding,
		"properties": buildAnalysisProperties(analysis),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/v1/objects", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("store analysis failed: %s", strings.TrimSpace(string(data)))
	}

	return nil
}

// Similar returns the nearest stored analyses for the query embedding.
func (s *VectorStore) Similar(ctx context.Context, query models.SearchQuery) ([]models.SearchMatch, error) {
	if s == nil {
		return nil, fmt.Errorf("vector store not initialised")
	}
	if s.endpoint == "" {
		return nil, fmt.Errorf("vector store endpoint not configured")
	}

	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	cacheKey := ""
	if s.searchTTL > 0 {
		cacheKey = cacheSimilarKey(query, limit)
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached []models.SearchMatch
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	payload := map[string]any{
		"class":  "ImageAnalysis",
		"vector": query.Embedding,
		"limit":  limit,
	}
	if query.Filter != (models.DemographicProfile{}) {
		payload["filter"] = profileFilter(query.Filter)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vector search failed: %s", strings.TrimSpace(string(data)))
	}

	matches, err := decodeMatches(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if s.searchTTL > 0 && cacheKey != "" && len(matches) > 0 {
		if data, err := json.Marshal(matches); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.searchTTL)
		}
	}

	return matches, nil
}

// ByProfile returns stored analyses matching a demographic profile.
func (s *VectorStore) ByProfile(ctx context.Context, profile models.DemographicProfile, limit int) ([]models.SearchMatch, error) {
	if s == nil {
		return nil, fmt.Errorf("vector store not initialised")
	}
	if s.endpoint == "" {
		return nil, fmt.Errorf("vector store endpoint not configured")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	payload := map[string]any{
		"class":  "ImageAnalysis",
		"limit":  limit,
		"filter": profileFilter(profile),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/v1/demographics/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("demographic search failed: %s", strings.TrimSpace(string(data)))
	}

	matches, err := decodeMatches(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode demographic response: %w", err)
	}
	return matches, nil
}

func decodeMatches(body io.Reader) ([]models.SearchMatch, error) {
	var response struct {
		Matches []struct {
			RecordID   string  `json:"record_id"`
			Similarity float64 `json:"similarity"`
			Profile    struct {
				Ethnicity string `json:"ethnicity"`
				SkinType  string `json:"skin_type"`
				AgeGroup  string `json:"age_group"`
			} `json:"profile"`
		} `json:"matches"`
	}

	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, err
	}

	matches := make([]models.SearchMatch, 0, len(response.Matches))
	for _, m := range response.Matches {
		matches = append(matches, models.SearchMatch{
			RecordID:   m.RecordID,
			Similarity: m.Similarity,
			Profile: models.DemographicProfile{
				Ethnicity: m.Profile.Ethnicity,
				SkinType:  m.Profile.SkinType,
				AgeGroup:  m.Profile.AgeGroup,
			},
		})
	}
	return matches, nil
}

func profileFilter(profile models.DemographicProfile) map[string]string {
	return map[string]string{
		"ethnicity": profile.Ethnicity,
		"skin_type": profile.SkinType,
		"age_group": profile.AgeGroup,
	}
}

func cacheSimilarKey(query models.SearchQuery, limit int) string {
	digest := sha256.New()
	for _, v := range query.Embedding {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		digest.Write(buf[:])
	}
	return fmt.Sprintf("vectorstore:similar:%d:%s|%s|%s:%x",
		limit, query.Filter.Ethnicity, query.Filter.SkinType, query.Filter.AgeGroup, digest.Sum(nil)[:16])
}

func buildAnalysisProperties(analysis models.VisionAnalysis) map[string]any {
	analyzedAt := analysis.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now().UTC()
	}
	return map[string]any{
		"imageId":    analysis.ImageID,
		"attributes": analysis.Attributes,
		"ethnicity":  analysis.Profile.Ethnicity,
		"skinType":   analysis.Profile.SkinType,
		"ageGroup":   analysis.Profile.AgeGroup,
		"analyzedAt": analyzedAt.Format(time.RFC3339),
	}
}
