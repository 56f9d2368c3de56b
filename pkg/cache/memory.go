package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/models"
)

// maxQueryMeta bounds the diagnostic query copy kept on each entry.
const maxQueryMeta = 100

// MemoryStore is an in-memory response cache with smart TTL and
// invalidation. Safe for concurrent use; every read-evaluate-evict sequence
// runs under one lock hold.
type MemoryStore struct {
	mu         sync.Mutex
	policy     TTLPolicy
	maxEntries int
	entries    map[string]memEntry

	hits          int64
	misses        int64
	invalidations int64

	now func() time.Time
}

type memEntry struct {
	value     string
	createdAt time.Time
	meta      Metadata
}

// NewMemoryStore creates a MemoryStore bounded to maxEntries entries.
func NewMemoryStore(policy TTLPolicy, maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &MemoryStore{
		policy:     policy,
		maxEntries: maxEntries,
		entries:    make(map[string]memEntry),
		now:        time.Now,
	}
}

// Get retrieves a cached response if it is still usable. Stale entries are
// evicted eagerly on the failed read.
func (s *MemoryStore) Get(key, category string, rctx Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return "", false
	}

	now := s.now()
	age := now.Sub(e.createdAt)

	if ShouldInvalidate(e.meta, age, rctx, now) {
		delete(s.entries, key)
		s.invalidations++
		s.misses++
		return "", false
	}

	if age > s.effectiveTTL(e.meta, category) {
		delete(s.entries, key)
		s.misses++
		return "", false
	}

	s.hits++
	return e.value, true
}

// effectiveTTL prefers the per-entry override, then the policy TTL for the
// requested category, falling back to the category recorded at write time.
func (s *MemoryStore) effectiveTTL(meta Metadata, category string) time.Duration {
	if meta.TTL > 0 {
		return meta.TTL
	}
	if category == "" {
		category = meta.Category
	}
	return s.policy.TTL(category)
}

// Set stores a response stamped with the current time. Writes for
// zero-TTL categories are dropped.
func (s *MemoryStore) Set(key, value, category string, meta Metadata) {
	if !s.policy.ShouldCache(category) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	meta.Category = strings.ToLower(category)
	if meta.Date == "" {
		meta.Date = now.Format(dateLayout)
	}
	if len(meta.Query) > maxQueryMeta {
		meta.Query = meta.Query[:maxQueryMeta]
	}
	if meta.TTL <= 0 {
		meta.TTL = s.policy.TTL(category)
	}

	s.entries[key] = memEntry{value: value, createdAt: now, meta: meta}
	s.cleanupLocked()
}

// cleanupLocked keeps only the most recently written entries once the store
// grows past its bound. Recency by write time, not by access.
func (s *MemoryStore) cleanupLocked() {
	if len(s.entries) <= s.maxEntries {
		return
	}

	type keyed struct {
		key       string
		createdAt time.Time
	}
	all := make([]keyed, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, keyed{key: k, createdAt: e.createdAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].createdAt.After(all[j].createdAt)
	})
	for _, victim := range all[s.maxEntries:] {
		delete(s.entries, victim.key)
	}
}

// Clear removes all entries unconditionally.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memEntry)
}

// ClearCategory removes entries whose stored category matches.
func (s *MemoryStore) ClearCategory(category string) {
	category = strings.ToLower(category)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.meta.Category == category {
			delete(s.entries, k)
		}
	}
}

// Stats returns cumulative counters plus the derived hit rate and the
// average TTL across live entries.
func (s *MemoryStore) Stats() models.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.CacheStats{
		Entries:       len(s.entries),
		Hits:          s.hits,
		Misses:        s.misses,
		Invalidations: s.invalidations,
		TotalQueries:  s.hits + s.misses,
	}
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries) * 100
	}
	if len(s.entries) > 0 {
		var sum time.Duration
		for _, e := range s.entries {
			sum += e.meta.TTL
		}
		stats.AvgTTLSeconds = sum.Seconds() / float64(len(s.entries))
	}
	return stats
}
