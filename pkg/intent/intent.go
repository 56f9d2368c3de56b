// Package intent maps free-form city-guide queries to the semantic
// categories the cache TTL policy understands.
package intent

import "strings"

// rule associates a category with the keywords that signal it. Rules are
// checked in order; the first keyword hit wins.
type rule struct {
	category string
	keywords []string
}

// defaultRules covers the Hyderabad city-guide domain. More specific
// categories come first so "traffic near charminar" reads as traffic,
// not monuments.
var defaultRules = []rule{
	{"weather", []string{"weather", "rain", "temperature", "humidity", "forecast", "climate"}},
	{"traffic", []string{"traffic", "congestion", "jam", "route busy"}},
	{"fuel", []string{"petrol", "diesel", "fuel", "cng"}},
	{"metro", []string{"metro", "rail timing", "last train"}},
	{"bus", []string{"bus", "rtc", "mmts"}},
	{"news", []string{"news", "headline", "breaking"}},
	{"events", []string{"event", "concert", "festival", "exhibition"}},
	{"live_deals", []string{"live deal", "flash sale"}},
	{"deals", []string{"deal", "discount", "offer"}},
	{"movies", []string{"movie", "cinema", "theatre", "showtime"}},
	{"food", []string{"food", "restaurant", "biryani", "eat", "cafe", "tiffin", "haleem"}},
	{"shopping", []string{"shopping", "mall", "bazaar", "market"}},
	{"crowd", []string{"crowd", "rush", "queue"}},
	{"utilities", []string{"power cut", "water supply", "outage"}},
	{"temples", []string{"temple", "mandir"}},
	{"museums", []string{"museum", "gallery"}},
	{"monuments", []string{"charminar", "golconda", "fort", "monument", "tomb", "qutb shahi"}},
	{"history", []string{"history", "nizam", "dynasty"}},
	{"landmarks", []string{"landmark", "hussain sagar", "tank bund", "necklace road"}},
	{"itinerary", []string{"itinerary", "day plan", "trip plan"}},
}

// fallbackCategory is used when no keyword matches; general chat gets a
// short TTL.
const fallbackCategory = "chat"

// Classifier resolves queries to categories by keyword lookup.
type Classifier struct {
	rules []rule
}

// NewClassifier returns a Classifier with the built-in keyword rules.
func NewClassifier() *Classifier {
	return &Classifier{rules: defaultRules}
}

// Classify returns the category for a query, or "chat" when nothing
// matches. Matching is case-insensitive substring search.
func (c *Classifier) Classify(query string) string {
	q := strings.ToLower(query)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.category
			}
		}
	}
	return fallbackCategory
}
