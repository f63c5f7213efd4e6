package cache

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultVectorCacheSize bounds the similarity cache.
	DefaultVectorCacheSize = 2000
	// DefaultVectorTTL expires similarity entries.
	DefaultVectorTTL = time.Hour
	// scoreWindowSize bounds the rolling diagnostics window.
	scoreWindowSize = 1000
)

// VectorSimilarityCache caches scalar similarity scores keyed by a hash of
// each vector's raw bytes. Similarity is symmetric, so lookups try both
// orderings. A rolling window of observed scores feeds diagnostic statistics
// independent of entry expiry.
type VectorSimilarityCache struct {
	mu sync.Mutex

	entries map[string]*vectorEntry
	maxSize int
	ttl     time.Duration

	window []float64

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

type vectorEntry struct {
	key          string
	score        float64
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int64
}

// NewVectorSimilarityCache constructs the cache; non-positive arguments fall
// back to defaults.
func NewVectorSimilarityCache(maxSize int, ttl time.Duration) *VectorSimilarityCache {
	if maxSize <= 0 {
		maxSize = DefaultVectorCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultVectorTTL
	}
	return &VectorSimilarityCache{
		entries: make(map[string]*vectorEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached similarity for a vector pair in either order.
func (c *VectorSimilarityCache) Get(a, b []float32) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range []string{vectorPairKey(a, b), vectorPairKey(b, a)} {
		entry, ok := c.entries[key]
		if !ok {
			continue
		}
		if time.Since(entry.createdAt) > c.ttl {
			delete(c.entries, key)
			c.expirations++
			c.misses++
			return 0, false
		}
		entry.lastAccessed = time.Now()
		entry.accessCount++
		c.hits++
		return entry.score, true
	}

	c.misses++
	return 0, false
}

// Set stores the similarity score for a vector pair and records it in the
// diagnostics window.
func (c *VectorSimilarityCache) Set(a, b []float32, score float64) {
	key := vectorPairKey(a, b)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.window = append(c.window, score)
	if len(c.window) > scoreWindowSize {
		c.window = c.window[len(c.window)-scoreWindowSize:]
	}

	if entry, ok := c.entries[key]; ok {
		entry.score = score
		entry.createdAt = now
		entry.lastAccessed = now
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = &vectorEntry{key: key, score: score, createdAt: now, lastAccessed: now}
}

// Stats reports size, hit counters, policy parameters, and rolling score
// statistics (mean/min/max/std) over the diagnostics window.
func (c *VectorSimilarityCache) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := map[string]any{
		"size":        len(c.entries),
		"max_size":    c.maxSize,
		"ttl_seconds": c.ttl.Seconds(),
		"hits":        c.hits,
		"misses":      c.misses,
		"evictions":   c.evictions,
		"expirations": c.expirations,
		"hit_rate":    hitRate(c.hits, c.misses),
		"window_size": len(c.window),
	}
	if len(c.window) > 0 {
		mean, min, max, std := windowStats(c.window)
		stats["score_mean"] = mean
		stats["score_min"] = min
		stats["score_max"] = max
		stats["score_std"] = std
	}
	return stats
}

func (c *VectorSimilarityCache) evictOldestLocked() {
	var oldest *vectorEntry
	for _, entry := range c.entries {
		if oldest == nil || entry.lastAccessed.Before(oldest.lastAccessed) {
			oldest = entry
		}
	}
	if oldest == nil {
		return
	}
	delete(c.entries, oldest.key)
	c.evictions++
}

func vectorPairKey(a, b []float32) string {
	return hashKey(vectorBytes(a)) + ":" + hashKey(vectorBytes(b))
}

func windowStats(values []float64) (mean, min, max, std float64) {
	min = values[0]
	max = values[0]
	for _, v := range values {
		mean += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	std = math.Sqrt(variance)
	return mean, min, max, std
}
