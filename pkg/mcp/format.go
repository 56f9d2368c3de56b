package mcp

import (
	"fmt"
	"strings"

	"github.com/mitr-ai/mitrguard/pkg/models"
)

// formatSummary formats query usage summaries as a text table.
func formatSummary(rows []models.QuerySummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-12s %8s %10s %12s\n",
		"Identity", "Category", "Requests", "Cache Hits", "Avg Latency")
	b.WriteString(strings.Repeat("-", 70) + "\n")
	for _, r := range rows {
		id := r.Identity
		if len(id) > 24 {
			id = id[:10] + "..." + id[len(id)-10:]
		}
		fmt.Fprintf(&b, "%-24s %-12s %8d %10d %10.1fms\n",
			id, r.Category, r.RequestCount, r.CacheHits, r.AvgLatencyMs)
	}
	return b.String()
}

// formatSessions formats sessions as a text table.
func formatSessions(sessions []models.Session) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-24s %-20s %-20s %8s\n",
		"Session ID", "Identity", "Started", "Last Activity", "Requests")
	b.WriteString(strings.Repeat("-", 100) + "\n")
	for _, s := range sessions {
		id := s.Identity
		if len(id) > 24 {
			id = id[:10] + "..." + id[len(id)-10:]
		}
		fmt.Fprintf(&b, "%-24s %-24s %-20s %-20s %8d\n",
			s.ID, id,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.LastActivity.Format("2006-01-02 15:04:05"),
			s.RequestCount)
	}
	return b.String()
}

// formatWindowStatuses formats per-horizon rate limit usage as a text table.
func formatWindowStatuses(identity string, statuses []models.WindowStatus) string {
	if len(statuses) == 0 {
		return "No rate limit windows configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Rate limit usage for %s\n\n", identity)
	fmt.Fprintf(&b, "%-8s %8s %8s %10s\n", "Window", "Limit", "Used", "Remaining")
	b.WriteString(strings.Repeat("-", 38) + "\n")
	for _, s := range statuses {
		fmt.Fprintf(&b, "%-8s %8d %8d %10d\n", s.Horizon, s.Limit, s.Used, s.Remaining)
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:       %d\n"+
		"  Hits:          %d\n"+
		"  Misses:        %d\n"+
		"  Invalidations: %d\n"+
		"  Hit Rate:      %.1f%%\n"+
		"  Avg TTL:       %.0fs\n",
		stats.Entries, stats.Hits, stats.Misses, stats.Invalidations,
		stats.HitRate, stats.AvgTTLSeconds)
}

// formatAuditEntries formats audit log entries as a text table.
func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-10s %-14s %-12s %-24s %10s\n",
		"Time", "Identity", "Outcome", "Category", "Session", "Latency")
	b.WriteString(strings.Repeat("-", 96) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-20s %-10s %-14s %-12s %-24s %8dms\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.IdentityPrefix, e.Outcome, e.Category, e.SessionID, e.LatencyMs)
	}
	return b.String()
}
