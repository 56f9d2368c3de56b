package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/models"
)

func newTestLogger(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(t.TempDir(), "audit_test.db")
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func testEntry(requestID, outcome string) models.AuditEntry {
	hash, prefix := HashIdentity("session-abc-123")
	return models.AuditEntry{
		RequestID:      requestID,
		IdentityHash:   hash,
		IdentityPrefix: prefix,
		Outcome:        outcome,
		Category:       "weather",
		Language:       "en",
		Area:           "Gachibowli",
		Query:          "will it rain today",
		LatencyMs:      42,
	}
}

func TestHashIdentity(t *testing.T) {
	h1, p1 := HashIdentity("session-abc-123")
	h2, _ := HashIdentity("session-abc-123")
	h3, _ := HashIdentity("session-xyz-789")

	if h1 != h2 {
		t.Error("same identity should produce the same hash")
	}
	if h1 == h3 {
		t.Error("different identities should produce different hashes")
	}
	if p1 != "session-" {
		t.Errorf("prefix = %q, want first 8 chars", p1)
	}

	_, short := HashIdentity("abc")
	if short != "abc" {
		t.Errorf("short identity prefix = %q, want abc", short)
	}
}

func TestLogAndQuery(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true, IncludeQueries: true})
	ctx := context.Background()

	if err := l.Log(ctx, testEntry("req-1", models.OutcomeCacheMiss)); err != nil {
		t.Fatal(err)
	}
	if err := l.Log(ctx, testEntry("req-2", models.OutcomeRateLimited)); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{Outcome: models.OutcomeRateLimited})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 rate_limited entry, got %d", len(entries))
	}
	if entries[0].RequestID != "req-2" {
		t.Errorf("request_id = %q, want req-2", entries[0].RequestID)
	}
	if entries[0].Query != "will it rain today" {
		t.Errorf("query = %q, want the original text", entries[0].Query)
	}
}

func TestQueriesExcludedByDefault(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true})
	ctx := context.Background()

	if err := l.Log(ctx, testEntry("req-1", models.OutcomeCacheHit)); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Query != "" {
		t.Error("query text must not be stored unless include_queries is set")
	}
}

func TestExcludedCategories(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true, ExcludeCategories: []string{"weather"}})
	ctx := context.Background()

	if err := l.Log(ctx, testEntry("req-1", models.OutcomeCacheHit)); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Error("excluded category must not be logged")
	}
}

func TestStats(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true})
	ctx := context.Background()

	for i, outcome := range []string{models.OutcomeCacheHit, models.OutcomeCacheHit, models.OutcomeRateLimited} {
		e := testEntry("req-"+string(rune('a'+i)), outcome)
		if err := l.Log(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 outcome groups, got %d", len(stats))
	}
	for _, s := range stats {
		if s.Outcome == models.OutcomeCacheHit && s.Count != 2 {
			t.Errorf("cache_hit count = %d, want 2", s.Count)
		}
	}
}

func TestCleanup(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true, RetentionDays: 7})
	ctx := context.Background()

	old := testEntry("req-old", models.OutcomeCacheMiss)
	old.CreatedAt = time.Now().AddDate(0, 0, -10)
	recent := testEntry("req-new", models.OutcomeCacheMiss)

	if err := l.Log(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := l.Log(ctx, recent); err != nil {
		t.Fatal(err)
	}

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].RequestID != "req-new" {
		t.Errorf("entries after cleanup = %+v", entries)
	}
}
