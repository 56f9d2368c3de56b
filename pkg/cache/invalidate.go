package cache

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Metadata is stamped onto a cache entry at write time and drives the
// invalidation rules on later reads.
type Metadata struct {
	Category string        `json:"category"`
	Area     string        `json:"area,omitempty"`
	Date     string        `json:"date"` // calendar day at write time, YYYY-MM-DD
	Query    string        `json:"query,omitempty"`
	TTL      time.Duration `json:"ttl"` // zero selects the policy TTL
}

// Context carries the caller's current state into a cache read.
type Context struct {
	Area string
}

// Categories whose answers go stale at midnight.
var dateSensitive = map[string]bool{
	"events": true,
	"deals":  true,
	"news":   true,
}

// Categories whose answers depend on the selected area.
var areaSensitive = map[string]bool{
	"weather":  true,
	"traffic":  true,
	"food":     true,
	"shopping": true,
}

// ShouldInvalidate applies the freshness rules that tighten raw TTL expiry.
// Any firing rule forces a miss regardless of remaining TTL; no rule ever
// extends an entry's life.
func ShouldInvalidate(meta Metadata, age time.Duration, rctx Context, now time.Time) bool {
	cat := strings.ToLower(meta.Category)

	// Date rollover: yesterday's events, deals, and news are useless today.
	// A missing write date counts as a different day.
	if dateSensitive[cat] && meta.Date != now.Format(dateLayout) {
		return true
	}

	// Area drift: the caller moved, location-bound answers no longer apply.
	if areaSensitive[cat] && rctx.Area != "" && meta.Area != rctx.Area {
		return true
	}

	// Weather older than 30 minutes is stale whatever its TTL says.
	if cat == "weather" && age > 30*time.Minute {
		return true
	}

	// Traffic churns during peak hours; hold entries to 5 minutes then.
	if cat == "traffic" && isPeakHour(now.Hour()) && age > 5*time.Minute {
		return true
	}

	return false
}

func isPeakHour(hour int) bool {
	return (hour >= 8 && hour <= 10) || (hour >= 17 && hour <= 20)
}
