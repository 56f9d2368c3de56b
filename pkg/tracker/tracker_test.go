package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tracker_test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	records := []models.QueryRecord{
		{Identity: "u1", Category: "weather", Language: "en", Cached: false, LatencyMs: 120},
		{Identity: "u1", Category: "weather", Language: "en", Cached: true, LatencyMs: 2},
		{Identity: "u1", Category: "food", Language: "te", Cached: false, LatencyMs: 340},
		{Identity: "u2", Category: "weather", Language: "en", Cached: false, LatencyMs: 100},
	}
	for _, rec := range records {
		if err := tr.Record(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	summaries, err := tr.Summary(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries for u1, got %d", len(summaries))
	}

	// Ordered by identity then category: food first.
	if summaries[0].Category != "food" || summaries[0].RequestCount != 1 {
		t.Errorf("food summary = %+v", summaries[0])
	}
	if summaries[1].Category != "weather" || summaries[1].RequestCount != 2 || summaries[1].CacheHits != 1 {
		t.Errorf("weather summary = %+v", summaries[1])
	}

	all, err := tr.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 summaries in total, got %d", len(all))
	}
}

func TestCountSince(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	old := models.QueryRecord{Identity: "u1", Category: "chat", CreatedAt: time.Now().UTC().Add(-2 * time.Hour)}
	recent := models.QueryRecord{Identity: "u1", Category: "chat"}
	if err := tr.Record(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := tr.Record(ctx, recent); err != nil {
		t.Fatal(err)
	}

	n, err := tr.CountSince(ctx, "u1", time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count since 1h = %d, want 1", n)
	}
}

func TestResolveSessionExplicit(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	sid, err := tr.ResolveSession(ctx, "u1", "sess_custom", 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if sid != "sess_custom" {
		t.Errorf("explicit session = %q, want sess_custom", sid)
	}

	sessions, err := tr.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != "sess_custom" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestResolveSessionAutoDetect(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	first, err := tr.ResolveSession(ctx, "u1", "", 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	// Within the gap the same session is reused.
	second, err := tr.ResolveSession(ctx, "u1", "", 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("expected session reuse, got %q then %q", first, second)
	}

	// A zero gap forces a new session.
	third, err := tr.ResolveSession(ctx, "u1", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("expected a fresh session after the gap elapsed")
	}
}

func TestSessionCounters(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	sid, err := tr.ResolveSession(ctx, "u1", "", 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Record(ctx, models.QueryRecord{Identity: "u1", SessionID: sid, Category: "chat"}); err != nil {
		t.Fatal(err)
	}

	sessions, err := tr.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].RequestCount != 1 {
		t.Errorf("sessions = %+v", sessions)
	}
}
