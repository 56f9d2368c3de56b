// Package guard is the protection layer in front of expensive city-guide
// operations. Callers rate-check an identity, try the cache, and only then
// spend money on an LLM or external API call.
package guard

import (
	"github.com/mitr-ai/mitrguard/pkg/cache"
	"github.com/mitr-ai/mitrguard/pkg/models"
	"github.com/mitr-ai/mitrguard/pkg/ratelimit"
)

// Guard bundles the rate limiter and the response cache behind the
// four-call surface the request path needs. Construct one per process and
// inject it; there is no package-level instance.
type Guard struct {
	limiter *ratelimit.Limiter
	store   cache.Store
}

// Stats aggregates the guard's observable state.
type Stats struct {
	Cache models.CacheStats `json:"cache"`
}

// New creates a Guard from its two dependencies.
func New(limiter *ratelimit.Limiter, store cache.Store) *Guard {
	return &Guard{limiter: limiter, store: store}
}

// RateCheck decides whether the identity may proceed, consuming one slot
// of its allowance when allowed. Callers must stop on a rejection and show
// the decision's reason and retry-after.
func (g *Guard) RateCheck(identity string) models.Decision {
	return g.limiter.Allow(identity)
}

// RateStatus reports per-horizon usage without consuming allowance.
func (g *Guard) RateStatus(identity string) []models.WindowStatus {
	return g.limiter.Status(identity)
}

// Lookup returns a cached response for the request, if one is still
// usable under the TTL and invalidation rules. A guard without a store
// always misses.
func (g *Guard) Lookup(query, language, area, category string) (string, bool) {
	if g.store == nil {
		return "", false
	}
	key := cache.Key(query, language, area)
	return g.store.Get(key, category, cache.Context{Area: area})
}

// Store caches a freshly computed response under the request's key.
// Uncacheable categories are dropped silently.
func (g *Guard) Store(query, language, area, category, value string) {
	if g.store == nil {
		return
	}
	key := cache.Key(query, language, area)
	g.store.Set(key, value, category, cache.Metadata{
		Area:  area,
		Query: query,
	})
}

// ClearCache removes every cached response.
func (g *Guard) ClearCache() {
	if g.store == nil {
		return
	}
	g.store.Clear()
}

// ClearCategory removes cached responses for one category.
func (g *Guard) ClearCategory(category string) {
	if g.store == nil {
		return
	}
	g.store.ClearCategory(category)
}

// Stats returns the guard's counters for operator display.
func (g *Guard) Stats() Stats {
	if g.store == nil {
		return Stats{}
	}
	return Stats{Cache: g.store.Stats()}
}
