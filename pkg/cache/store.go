package cache

import "github.com/mitr-ai/mitrguard/pkg/models"

// Store is the response cache contract shared by the memory and sqlite
// backends. A store is best effort: reads and writes never fail, they
// degrade to misses.
type Store interface {
	// Get returns a live cached response. A miss caused by expiry or an
	// invalidation rule evicts the stale entry.
	Get(key, category string, rctx Context) (string, bool)
	// Set stores a response. Categories the policy refuses to cache are
	// silently dropped.
	Set(key, value, category string, meta Metadata)
	// Clear removes all entries.
	Clear()
	// ClearCategory removes entries whose stored category matches.
	ClearCategory(category string)
	// Stats returns cumulative counters and the current entry count.
	Stats() models.CacheStats
}
