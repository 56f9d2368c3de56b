package models

import "time"

// Gate outcomes recorded in the audit log.
const (
	OutcomeRateLimited = "rate_limited"
	OutcomeCacheHit    = "cache_hit"
	OutcomeCacheMiss   = "cache_miss"
	OutcomeUpstreamErr = "upstream_error"
)

// AuditEntry records a single gate decision.
type AuditEntry struct {
	RequestID      string    `json:"request_id"`
	IdentityHash   string    `json:"identity_hash"`
	IdentityPrefix string    `json:"identity_prefix"`
	SessionID      string    `json:"session_id"`
	Outcome        string    `json:"outcome"`
	Category       string    `json:"category"`
	Language       string    `json:"language"`
	Area           string    `json:"area"`
	Query          string    `json:"query,omitempty"`
	RetryAfter     int       `json:"retry_after,omitempty"`
	LatencyMs      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled           bool     `yaml:"enabled"`
	DBPath            string   `yaml:"db_path"`
	RetentionDays     int      `yaml:"retention_days"`
	IncludeQueries    bool     `yaml:"include_queries"`
	ExcludeCategories []string `yaml:"exclude_categories"`
	MaxQuerySize      int      `yaml:"max_query_size"` // bytes
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	RequestID      string
	Outcome        string
	Category       string
	IdentityPrefix string
	SessionID      string
	Since          time.Time
	Limit          int
}

// AuditStat holds aggregate audit counts for an outcome/day combination.
type AuditStat struct {
	Outcome string
	Day     string
	Count   int
}
