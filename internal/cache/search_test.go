package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

type stubProvider struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newStubProvider() *stubProvider {
	return &stubProvider{store: make(map[string][]byte)}
}

func (s *stubProvider) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.store[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

func (s *stubProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = append([]byte(nil), value...)
	return nil
}

func (s *stubProvider) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	return nil
}

func (s *stubProvider) Close() error { return nil }

func query(seed float32, limit int) models.SearchQuery {
	return models.SearchQuery{
		Embedding: []float32{seed, seed * 2, seed * 3},
		Filter:    models.DemographicProfile{Ethnicity: "east_asian"},
		Limit:     limit,
	}
}

func matchesFor(id string) []models.SearchMatch {
	return []models.SearchMatch{{RecordID: id, Similarity: 0.9}}
}

func TestSearchCacheHit(t *testing.T) {
	c := NewSearchResultCache(10, nil, 0, nil)
	ctx := context.Background()

	c.Set(ctx, query(1, 5), matchesFor("rec-1"))

	matches, ok := c.Get(ctx, query(1, 5))
	if !ok {
		t.Fatalf("expected local hit")
	}
	if len(matches) != 1 || matches[0].RecordID != "rec-1" {
		t.Fatalf("unexpected matches %v", matches)
	}

	// Same embedding with different parameters is a distinct key.
	if _, ok := c.Get(ctx, query(1, 10)); ok {
		t.Fatalf("expected miss for different limit")
	}
}

func TestSearchCacheValueScoredEviction(t *testing.T) {
	c := NewSearchResultCache(10, nil, 0, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		c.Set(ctx, query(float32(i+1), 5), matchesFor("rec"))
	}
	// Raise the value score of the first eight entries.
	for i := 0; i < 8; i++ {
		for j := 0; j < 3; j++ {
			if _, ok := c.Get(ctx, query(float32(i+1), 5)); !ok {
				t.Fatalf("expected hit while warming entry %d", i)
			}
		}
	}

	c.Set(ctx, query(100, 5), matchesFor("new"))

	stats := c.Stats()
	size := stats["size"].(int)
	evictions := stats["evictions"].(int64)
	if evictions < 1 || evictions > 2 {
		t.Fatalf("expected between 1 and 20%% evictions, got %d", evictions)
	}
	if size > 10 {
		t.Fatalf("cache exceeded max size: %d", size)
	}

	// The never-accessed entries score lowest and go first.
	if _, ok := c.Get(ctx, query(9, 5)); ok {
		t.Fatalf("expected cold entry 9 to be evicted")
	}
	for i := 0; i < 8; i++ {
		if _, ok := c.Get(ctx, query(float32(i+1), 5)); !ok {
			t.Fatalf("expected warmed entry %d to survive", i)
		}
	}
}

func TestSearchCacheRemoteTier(t *testing.T) {
	remote := newStubProvider()
	ctx := context.Background()

	writer := NewSearchResultCache(10, remote, time.Minute, nil)
	writer.Set(ctx, query(1, 5), matchesFor("rec-remote"))

	// A fresh local cache sharing the remote tier serves the entry.
	reader := NewSearchResultCache(10, remote, time.Minute, nil)
	matches, ok := reader.Get(ctx, query(1, 5))
	if !ok {
		t.Fatalf("expected remote tier hit")
	}
	if matches[0].RecordID != "rec-remote" {
		t.Fatalf("unexpected matches %v", matches)
	}

	stats := reader.Stats()
	if stats["remote_hits"].(int64) != 1 {
		t.Fatalf("expected one remote hit, stats %v", stats)
	}

	// The remote fill is now cached locally.
	if _, ok := reader.Get(ctx, query(1, 5)); !ok {
		t.Fatalf("expected local hit after remote fill")
	}
}

func TestSearchCacheRemoteHitIsNotAMiss(t *testing.T) {
	remote := newStubProvider()
	ctx := context.Background()

	writer := NewSearchResultCache(10, remote, time.Minute, nil)
	writer.Set(ctx, query(1, 5), matchesFor("rec-remote"))

	reader := NewSearchResultCache(10, remote, time.Minute, nil)
	if _, ok := reader.Get(ctx, query(1, 5)); !ok {
		t.Fatalf("expected remote tier hit")
	}
	if _, ok := reader.Get(ctx, query(2, 5)); ok {
		t.Fatalf("expected miss for unknown query")
	}

	stats := reader.Stats()
	if stats["remote_hits"].(int64) != 1 {
		t.Fatalf("expected one remote hit, stats %v", stats)
	}
	if stats["misses"].(int64) != 1 {
		t.Fatalf("expected one true miss, stats %v", stats)
	}
	// One remote hit and one miss: effective hit rate is one half.
	if rate := stats["hit_rate"].(float64); rate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %v", rate)
	}
}
