package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

const (
	// DefaultDemographicCacheSize bounds the weighting cache.
	DefaultDemographicCacheSize = 1000
	// DefaultDemographicTTL expires weighting entries.
	DefaultDemographicTTL = 30 * time.Minute
)

// DemographicWeightingCache is a bounded LRU+TTL cache of similarity weights
// between demographic profile pairs. Weighting is symmetric, so lookups try
// both orderings of the pair.
type DemographicWeightingCache struct {
	mu sync.Mutex

	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	ttl     time.Duration

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

type demographicEntry struct {
	key          string
	weight       float64
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int64
}

// NewDemographicWeightingCache constructs the cache; non-positive arguments
// fall back to defaults.
func NewDemographicWeightingCache(maxSize int, ttl time.Duration) *DemographicWeightingCache {
	if maxSize <= 0 {
		maxSize = DefaultDemographicCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultDemographicTTL
	}
	return &DemographicWeightingCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached weight for a profile pair in either order. Expired
// entries report a miss but are only removed under insertion pressure or an
// explicit CleanupExpired sweep.
func (c *DemographicWeightingCache) Get(a, b models.DemographicProfile) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range []string{pairKey(a, b), pairKey(b, a)} {
		element, ok := c.entries[key]
		if !ok {
			continue
		}
		entry := element.Value.(*demographicEntry)
		if time.Since(entry.createdAt) > c.ttl {
			// The reverse ordering may hold a fresher entry.
			continue
		}
		entry.lastAccessed = time.Now()
		entry.accessCount++
		c.order.MoveToFront(element)
		c.hits++
		return entry.weight, true
	}

	c.misses++
	return 0, false
}

// Set stores the weight for a profile pair, evicting the least recently used
// entry when at capacity.
func (c *DemographicWeightingCache) Set(a, b models.DemographicProfile, weight float64) {
	key := pairKey(a, b)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		entry := element.Value.(*demographicEntry)
		entry.weight = weight
		entry.createdAt = now
		entry.lastAccessed = now
		c.order.MoveToFront(element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictLRULocked()
	}

	entry := &demographicEntry{key: key, weight: weight, createdAt: now, lastAccessed: now}
	c.entries[key] = c.order.PushFront(entry)
}

// CleanupExpired removes every entry past its TTL and returns the removal count.
func (c *DemographicWeightingCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for element := c.order.Back(); element != nil; {
		prev := element.Prev()
		entry := element.Value.(*demographicEntry)
		if time.Since(entry.createdAt) > c.ttl {
			c.removeLocked(element)
			c.expirations++
			removed++
		}
		element = prev
	}
	return removed
}

// Stats reports size, hit counters, and policy parameters.
func (c *DemographicWeightingCache) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]any{
		"size":        len(c.entries),
		"max_size":    c.maxSize,
		"ttl_seconds": c.ttl.Seconds(),
		"hits":        c.hits,
		"misses":      c.misses,
		"evictions":   c.evictions,
		"expirations": c.expirations,
		"hit_rate":    hitRate(c.hits, c.misses),
	}
}

func (c *DemographicWeightingCache) evictLRULocked() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeLocked(oldest)
	c.evictions++
}

func (c *DemographicWeightingCache) removeLocked(element *list.Element) {
	entry := element.Value.(*demographicEntry)
	delete(c.entries, entry.key)
	c.order.Remove(element)
}

func pairKey(a, b models.DemographicProfile) string {
	return hashKey(profileFingerprint(a), []byte{0}, profileFingerprint(b))
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
