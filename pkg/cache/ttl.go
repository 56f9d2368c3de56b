package cache

import (
	"strings"
	"time"
)

// DefaultTTL applies to categories without a configured rule.
const DefaultTTL = 10 * time.Minute

// builtinTTLs groups categories by volatility. Static facts live for a day,
// listings for hours, live data for minutes, and zero means never cache.
var builtinTTLs = map[string]time.Duration{
	// Static content.
	"monuments": 24 * time.Hour,
	"temples":   24 * time.Hour,
	"museums":   24 * time.Hour,
	"history":   24 * time.Hour,
	"landmarks": 24 * time.Hour,

	// Semi-static content.
	"food":      6 * time.Hour,
	"shopping":  6 * time.Hour,
	"movies":    6 * time.Hour,
	"itinerary": 6 * time.Hour,

	// Dynamic content.
	"news":   time.Hour,
	"events": time.Hour,
	"crowd":  time.Hour,

	// Real-time content.
	"weather": 10 * time.Minute,
	"traffic": 10 * time.Minute,
	"fuel":    30 * time.Minute,
	"metro":   30 * time.Minute,
	"bus":     30 * time.Minute,

	// Never cache.
	"utilities":  0,
	"deals":      0,
	"live_deals": 0,

	"chat": 5 * time.Minute,
}

// TTLPolicy maps a request category to a time-to-live. Immutable after
// construction.
type TTLPolicy struct {
	rules    map[string]time.Duration
	fallback time.Duration
}

// DefaultPolicy returns the built-in TTL rules.
func DefaultPolicy() TTLPolicy {
	return NewPolicy(DefaultTTL, nil)
}

// NewPolicy returns the built-in rules with the given fallback and
// per-category overrides applied on top.
func NewPolicy(fallback time.Duration, overrides map[string]time.Duration) TTLPolicy {
	if fallback <= 0 {
		fallback = DefaultTTL
	}
	rules := make(map[string]time.Duration, len(builtinTTLs)+len(overrides))
	for cat, ttl := range builtinTTLs {
		rules[cat] = ttl
	}
	for cat, ttl := range overrides {
		rules[strings.ToLower(cat)] = ttl
	}
	return TTLPolicy{rules: rules, fallback: fallback}
}

// TTL returns the time-to-live for a category. Unknown categories get the
// fallback. Lookup is case-insensitive.
func (p TTLPolicy) TTL(category string) time.Duration {
	if ttl, ok := p.rules[strings.ToLower(category)]; ok {
		return ttl
	}
	return p.fallback
}

// ShouldCache reports whether responses for a category are cacheable at all.
func (p TTLPolicy) ShouldCache(category string) bool {
	return p.TTL(category) > 0
}
