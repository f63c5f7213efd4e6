package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

const (
	// DefaultSearchCacheSize bounds the result cache.
	DefaultSearchCacheSize = 500
	// searchEvictFraction is the share of entries removed when full.
	searchEvictFraction = 0.2
	// minAgeHours keeps freshly inserted entries from dividing by zero.
	minAgeHours = 1.0 / 3600
)

// SearchResultCache caches vector search result lists keyed by the query
// fingerprint, demographic filter, and search parameters. Eviction is
// value-based rather than strict LRU: when full, the lowest scoring 20%
// (minimum one) of entries is dropped. An optional shared tier is consulted
// on local misses and written through on insert.
type SearchResultCache struct {
	mu sync.Mutex

	entries map[string]*searchEntry
	maxSize int
	remote  Provider
	ttl     time.Duration
	logger  *slog.Logger

	hits       int64
	misses     int64
	remoteHits int64
	evictions  int64
}

type searchEntry struct {
	key          string
	matches      []models.SearchMatch
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int64
}

// NewSearchResultCache constructs the cache. remote may be nil; remoteTTL
// bounds entries written to the shared tier.
func NewSearchResultCache(maxSize int, remote Provider, remoteTTL time.Duration, logger *slog.Logger) *SearchResultCache {
	if maxSize <= 0 {
		maxSize = DefaultSearchCacheSize
	}
	if remote == nil {
		remote = NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchResultCache{
		entries: make(map[string]*searchEntry),
		maxSize: maxSize,
		remote:  remote,
		ttl:     remoteTTL,
		logger:  logger,
	}
}

// Get returns cached matches for a query, consulting the shared tier on a
// local miss.
func (c *SearchResultCache) Get(ctx context.Context, query models.SearchQuery) ([]models.SearchMatch, bool) {
	key := searchKey(query)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		entry.lastAccessed = time.Now()
		entry.accessCount++
		matches := append([]models.SearchMatch(nil), entry.matches...)
		c.hits++
		c.mu.Unlock()
		return matches, true
	}
	c.mu.Unlock()

	// A shared-tier fill is still a hit; only count a miss once both tiers
	// come up empty.
	payload, err := c.remote.Get(ctx, "search:"+key)
	if err != nil {
		c.recordMiss()
		return nil, false
	}
	var matches []models.SearchMatch
	if err := json.Unmarshal(payload, &matches); err != nil {
		c.logger.Warn("discarding undecodable shared cache entry", slog.Any("error", err))
		c.recordMiss()
		return nil, false
	}

	c.storeLocal(key, matches)
	c.mu.Lock()
	c.remoteHits++
	c.mu.Unlock()
	return matches, true
}

func (c *SearchResultCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Set stores matches for a query, evicting the lowest-value entries when
// full, and writes through to the shared tier best-effort.
func (c *SearchResultCache) Set(ctx context.Context, query models.SearchQuery, matches []models.SearchMatch) {
	key := searchKey(query)
	c.storeLocal(key, matches)

	payload, err := json.Marshal(matches)
	if err != nil {
		return
	}
	if err := c.remote.Set(ctx, "search:"+key, payload, c.ttl); err != nil {
		c.logger.Debug("shared cache write failed", slog.Any("error", err))
	}
}

// Stats reports size, hit counters, and policy parameters.
func (c *SearchResultCache) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]any{
		"size":           len(c.entries),
		"max_size":       c.maxSize,
		"hits":           c.hits,
		"misses":         c.misses,
		"remote_hits":    c.remoteHits,
		"evictions":      c.evictions,
		"evict_fraction": searchEvictFraction,
		"hit_rate":       hitRate(c.hits+c.remoteHits, c.misses),
	}
}

func (c *SearchResultCache) storeLocal(key string, matches []models.SearchMatch) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.matches = append([]models.SearchMatch(nil), matches...)
		entry.createdAt = now
		entry.lastAccessed = now
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictLowValueLocked(now)
	}

	c.entries[key] = &searchEntry{
		key:          key,
		matches:      append([]models.SearchMatch(nil), matches...),
		createdAt:    now,
		lastAccessed: now,
	}
}

// evictLowValueLocked drops the lowest-scoring 20% of entries, at least one.
func (c *SearchResultCache) evictLowValueLocked(now time.Time) {
	count := int(float64(len(c.entries)) * searchEvictFraction)
	if count < 1 {
		count = 1
	}

	scored := make([]*searchEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		scored = append(scored, entry)
	}
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].valueScore(now) < scored[j].valueScore(now)
	})

	for i := 0; i < count && i < len(scored); i++ {
		delete(c.entries, scored[i].key)
		c.evictions++
	}
}

// valueScore rewards frequent and recent use: (accesses per hour of age)
// discounted by hours since last access.
func (e *searchEntry) valueScore(now time.Time) float64 {
	ageHours := now.Sub(e.createdAt).Hours()
	if ageHours < minAgeHours {
		ageHours = minAgeHours
	}
	recencyHours := now.Sub(e.lastAccessed).Hours()
	if recencyHours < 0 {
		recencyHours = 0
	}
	return (float64(e.accessCount) / ageHours) / (1 + recencyHours)
}

func searchKey(query models.SearchQuery) string {
	return hashKey(
		vectorBytes(query.Embedding),
		profileFingerprint(query.Filter),
		[]byte(strconv.Itoa(query.Limit)),
	)
}
