package models

import "time"

// DemographicProfile is the small categorical attribute set used to weight
// similarity between records.
type DemographicProfile struct {
	Ethnicity string
	SkinType  string
	AgeGroup  string
}

// VisionAnalysis is the output of the vision analysis capability for one image.
type VisionAnalysis struct {
	ImageID    string
	Embedding  []float32
	Attributes map[string]float64
	Profile    DemographicProfile
	AnalyzedAt time.Time
}

// SearchMatch is one vector search hit.
type SearchMatch struct {
	RecordID   string
	Similarity float64
	Profile    DemographicProfile
}

// SearchQuery bounds a vector similarity lookup.
type SearchQuery struct {
	Embedding []float32
	Filter    DemographicProfile
	Limit     int
}

// Classification is the classifier capability's verdict for one image.
type Classification struct {
	Label      string
	Confidence float64
	Degraded   bool
}

// AnalysisReport is the end-to-end pipeline output returned to callers.
// Degraded marks reports assembled from fallback or reduced-fidelity results.
type AnalysisReport struct {
	ReportID       string
	ImageID        string
	Analysis       VisionAnalysis
	Matches        []SearchMatch
	Classification Classification
	Degraded       bool
	CreatedAt      time.Time
}
