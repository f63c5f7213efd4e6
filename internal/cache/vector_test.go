package cache

import (
	"testing"
	"time"
)

func TestVectorCacheSymmetricLookup(t *testing.T) {
	c := NewVectorSimilarityCache(10, time.Minute)
	a := []float32{0.1, 0.2, 0.3}
	b := []float32{0.4, 0.5, 0.6}

	c.Set(a, b, 0.73)

	score, ok := c.Get(b, a)
	if !ok {
		t.Fatalf("expected hit for reversed vector pair")
	}
	if score != 0.73 {
		t.Fatalf("expected score 0.73, got %f", score)
	}
}

func TestVectorCacheTTLExpiry(t *testing.T) {
	c := NewVectorSimilarityCache(10, 10*time.Millisecond)
	a := []float32{1, 2}
	b := []float32{3, 4}

	c.Set(a, b, 0.5)
	time.Sleep(15 * time.Millisecond)

	if _, ok := c.Get(a, b); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestVectorCacheBounded(t *testing.T) {
	c := NewVectorSimilarityCache(3, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set([]float32{float32(i)}, []float32{float32(i + 1)}, float64(i))
	}

	stats := c.Stats()
	if size := stats["size"].(int); size != 3 {
		t.Fatalf("expected size 3, got %d", size)
	}
	if evictions := stats["evictions"].(int64); evictions != 2 {
		t.Fatalf("expected 2 evictions, got %d", evictions)
	}
}

func TestVectorCacheScoreWindowStats(t *testing.T) {
	c := NewVectorSimilarityCache(10, time.Minute)
	scores := []float64{0.2, 0.4, 0.6}
	for i, s := range scores {
		c.Set([]float32{float32(i)}, []float32{float32(i + 10)}, s)
	}

	stats := c.Stats()
	if mean := stats["score_mean"].(float64); mean < 0.39 || mean > 0.41 {
		t.Fatalf("expected mean near 0.4, got %f", mean)
	}
	if stats["score_min"].(float64) != 0.2 || stats["score_max"].(float64) != 0.6 {
		t.Fatalf("unexpected min/max in stats %v", stats)
	}
	if stats["window_size"].(int) != 3 {
		t.Fatalf("expected window of 3 scores, stats %v", stats)
	}
}
