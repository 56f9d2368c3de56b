package models

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries       int     `json:"entries"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Invalidations int64   `json:"invalidations"`
	TotalQueries  int64   `json:"total_queries"`
	HitRate       float64 `json:"hit_rate"`
	AvgTTLSeconds float64 `json:"avg_ttl_seconds"`
}
