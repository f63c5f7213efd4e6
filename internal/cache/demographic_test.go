package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

func profile(ethnicity, skin, age string) models.DemographicProfile {
	return models.DemographicProfile{Ethnicity: ethnicity, SkinType: skin, AgeGroup: age}
}

func TestDemographicCacheOrderIndependence(t *testing.T) {
	c := NewDemographicWeightingCache(10, time.Minute)
	a := profile("east_asian", "type_iii", "25-34")
	b := profile("south_asian", "type_iv", "35-44")

	c.Set(a, b, 0.82)

	weight, ok := c.Get(b, a)
	if !ok {
		t.Fatalf("expected hit for reversed pair")
	}
	if weight != 0.82 {
		t.Fatalf("expected weight 0.82, got %f", weight)
	}
}

func TestDemographicCacheTTLMiss(t *testing.T) {
	c := NewDemographicWeightingCache(10, 10*time.Millisecond)
	a := profile("black", "type_v", "18-24")
	b := profile("white", "type_ii", "18-24")

	c.Set(a, b, 0.4)
	time.Sleep(15 * time.Millisecond)

	if _, ok := c.Get(a, b); ok {
		t.Fatalf("expected TTL miss")
	}

	// Expiry is lazy: the entry survives until an explicit sweep.
	if stats := c.Stats(); stats["size"].(int) != 1 {
		t.Fatalf("expected lazy expiry to keep the entry, stats %v", stats)
	}
	if removed := c.CleanupExpired(); removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if stats := c.Stats(); stats["size"].(int) != 0 {
		t.Fatalf("expected empty cache after sweep, stats %v", stats)
	}
}

func TestDemographicCacheExpiredEntryDoesNotShadowReverse(t *testing.T) {
	c := NewDemographicWeightingCache(10, time.Minute)
	a := profile("east_asian", "type_iii", "25-34")
	b := profile("south_asian", "type_iv", "35-44")

	c.Set(a, b, 0.2)
	c.entries[pairKey(a, b)].Value.(*demographicEntry).createdAt = time.Now().Add(-2 * time.Minute)
	c.Set(b, a, 0.9)

	weight, ok := c.Get(a, b)
	if !ok {
		t.Fatalf("expected fresh reversed entry to be served")
	}
	if weight != 0.9 {
		t.Fatalf("expected weight 0.9, got %f", weight)
	}
}

func TestDemographicCacheLRUEviction(t *testing.T) {
	c := NewDemographicWeightingCache(2, time.Minute)
	first := profile("hispanic", "type_iv", "25-34")
	second := profile("white", "type_i", "45-54")
	third := profile("black", "type_vi", "25-34")
	other := profile("east_asian", "type_iii", "55+")

	c.Set(first, other, 0.1)
	c.Set(second, other, 0.2)

	// Touch the first entry so the second becomes least recently used.
	if _, ok := c.Get(first, other); !ok {
		t.Fatalf("expected hit for first pair")
	}

	c.Set(third, other, 0.3)

	if _, ok := c.Get(second, other); ok {
		t.Fatalf("expected LRU entry to be evicted")
	}
	if _, ok := c.Get(first, other); !ok {
		t.Fatalf("expected recently used entry to survive")
	}
}

func TestDemographicCacheConcurrentAccess(t *testing.T) {
	c := NewDemographicWeightingCache(100, time.Minute)
	other := profile("white", "type_ii", "25-34")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p := profile("east_asian", "type_iii", "25-34")
			for j := 0; j < 100; j++ {
				c.Set(p, other, float64(j))
				c.Get(p, other)
			}
		}(i)
	}
	wg.Wait()

	if _, ok := c.Get(profile("east_asian", "type_iii", "25-34"), other); !ok {
		t.Fatalf("expected entry to be present after concurrent writes")
	}
}
