package models

import "time"

// QueryRecord tracks one answered query for analytics.
type QueryRecord struct {
	ID        int64     `json:"id"`
	Identity  string    `json:"identity"`
	SessionID string    `json:"session_id,omitempty"`
	Category  string    `json:"category"`
	Language  string    `json:"language"`
	Area      string    `json:"area,omitempty"`
	Cached    bool      `json:"cached"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// QuerySummary aggregates answered queries by identity and category.
type QuerySummary struct {
	Identity     string  `json:"identity"`
	Category     string  `json:"category"`
	RequestCount int     `json:"request_count"`
	CacheHits    int     `json:"cache_hits"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Session groups related queries from one identity into a conversation.
type Session struct {
	ID           string    `json:"id"`
	Identity     string    `json:"identity"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	RequestCount int       `json:"request_count"`
}
