package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/models"
)

// Tool argument structs.

type identityArgs struct {
	Identity string `json:"identity"`
}

type cacheClearArgs struct {
	Category string `json:"category"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"mitr_cache_stats":  handleCacheStats,
	"mitr_cache_clear":  handleCacheClear,
	"mitr_usage":        handleUsage,
	"mitr_sessions":     handleSessions,
	"mitr_limits":       handleLimits,
	"mitr_audit_search": handleAuditSearch,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "mitr_cache_stats",
		Description: "Show response cache statistics (entries, hits, misses, invalidations, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "mitr_cache_clear",
		Description: "Clear cached responses, optionally restricted to one category.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "Only clear entries for this category (optional, omit to clear everything)",
				},
			},
		},
	},
	{
		Name:        "mitr_usage",
		Description: "Show answered-query counts grouped by identity and category.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"identity": map[string]any{
					"type":        "string",
					"description": "Filter by identity (optional, omit for all identities)",
				},
			},
		},
	},
	{
		Name:        "mitr_sessions",
		Description: "List tracked conversation sessions, optionally filtered by identity.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"identity": map[string]any{
					"type":        "string",
					"description": "Filter by identity (optional, omit for all identities)",
				},
			},
		},
	},
	{
		Name:        "mitr_limits",
		Description: "Show an identity's recorded request counts against the configured rate limits.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"identity"},
			"properties": map[string]any{
				"identity": map[string]any{
					"type":        "string",
					"description": "The identity to inspect",
				},
			},
		},
	},
	{
		Name:        "mitr_audit_search",
		Description: "Search the gate-decision audit log with optional filters.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"outcome": map[string]any{
					"type":        "string",
					"description": "Filter by outcome: rate_limited, cache_hit, cache_miss, upstream_error (optional)",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Filter by category (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional)",
				},
				"identity_prefix": map[string]any{
					"type":        "string",
					"description": "Filter by identity prefix (optional)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.store == nil {
		return textResult("Cache is not configured.")
	}
	return textResult(formatCacheStats(s.store.Stats()))
}

func handleCacheClear(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.store == nil {
		return textResult("Cache is not configured.")
	}
	var args cacheClearArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Category != "" {
		s.store.ClearCategory(args.Category)
		return textResult(fmt.Sprintf("Cleared cached responses for category %q.", args.Category))
	}
	s.store.Clear()
	return textResult("Cleared all cached responses.")
}

func handleUsage(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args identityArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	rows, err := s.tracker.Summary(ctx, args.Identity)
	if err != nil {
		return errorResult("Error fetching usage: " + err.Error())
	}
	return textResult(formatSummary(rows))
}

func handleSessions(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args identityArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	sessions, err := s.tracker.ListSessions(ctx, args.Identity)
	if err != nil {
		return errorResult("Error fetching sessions: " + err.Error())
	}
	return textResult(formatSessions(sessions))
}

// handleLimits derives per-horizon usage from the query-event log, so it
// works from another process than the gateway holding the live limiter.
func handleLimits(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args identityArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Identity == "" {
		return errorResult("identity is required")
	}

	now := time.Now().UTC()
	horizons := []struct {
		name  string
		limit int
		span  time.Duration
	}{
		{"minute", s.limits.PerMinute, time.Minute},
		{"hour", s.limits.PerHour, time.Hour},
		{"day", s.limits.PerDay, 24 * time.Hour},
	}

	var statuses []models.WindowStatus
	for _, h := range horizons {
		if h.limit <= 0 {
			continue
		}
		used, err := s.tracker.CountSince(ctx, args.Identity, now.Add(-h.span))
		if err != nil {
			return errorResult("Error counting requests: " + err.Error())
		}
		remaining := h.limit - int(used)
		if remaining < 0 {
			remaining = 0
		}
		statuses = append(statuses, models.WindowStatus{
			Horizon:   h.name,
			Limit:     h.limit,
			Used:      int(used),
			Remaining: remaining,
		})
	}
	return textResult(formatWindowStatuses(args.Identity, statuses))
}

type auditSearchArgs struct {
	Outcome        string `json:"outcome"`
	Category       string `json:"category"`
	Since          string `json:"since"`
	IdentityPrefix string `json:"identity_prefix"`
}

func handleAuditSearch(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.auditor == nil {
		return textResult("Audit logging is not configured.")
	}
	var args auditSearchArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	opts := models.AuditQueryOpts{
		Outcome:        args.Outcome,
		Category:       args.Category,
		IdentityPrefix: args.IdentityPrefix,
		Limit:          50,
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error())
	}
	return textResult(formatAuditEntries(entries))
}
