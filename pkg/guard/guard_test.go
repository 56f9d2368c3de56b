package guard

import (
	"testing"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/cache"
	"github.com/mitr-ai/mitrguard/pkg/ratelimit"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	limiter := ratelimit.New([]ratelimit.Window{{Name: "minute", Limit: 3, Span: time.Minute}})
	store := cache.NewMemoryStore(cache.DefaultPolicy(), 100)
	return New(limiter, store)
}

func TestLookupAfterStore(t *testing.T) {
	g := newTestGuard(t)

	if _, ok := g.Lookup("tell me about charminar", "en", "", "monuments"); ok {
		t.Fatal("expected miss before any store")
	}

	g.Store("tell me about charminar", "en", "", "monuments", "Built in 1591.")

	got, ok := g.Lookup("tell me about charminar", "en", "", "monuments")
	if !ok {
		t.Fatal("expected hit after store")
	}
	if got != "Built in 1591." {
		t.Errorf("unexpected value: %q", got)
	}

	// Same query with different surrounding whitespace and case hits too.
	if _, ok := g.Lookup("  Tell me about Charminar ", "en", "", "monuments"); !ok {
		t.Error("normalized queries should share a cache entry")
	}
}

func TestRateCheckGate(t *testing.T) {
	g := newTestGuard(t)

	for i := 0; i < 3; i++ {
		if d := g.RateCheck("u"); !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	d := g.RateCheck("u")
	if d.Allowed {
		t.Fatal("4th request must be rejected")
	}
	if d.Reason == "" {
		t.Error("rejections must carry a user-facing reason")
	}
	if d.RetryAfter <= 0 {
		t.Error("rejections must carry a retry-after")
	}
}

func TestRateStatus(t *testing.T) {
	g := newTestGuard(t)
	g.RateCheck("u")

	st := g.RateStatus("u")
	if len(st) != 1 || st[0].Used != 1 || st[0].Remaining != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestUncacheableCategory(t *testing.T) {
	g := newTestGuard(t)
	g.Store("any live deals", "en", "", "live_deals", "50% off")
	if _, ok := g.Lookup("any live deals", "en", "", "live_deals"); ok {
		t.Error("live_deals must never be served from cache")
	}
}

func TestStats(t *testing.T) {
	g := newTestGuard(t)
	g.Store("q", "en", "", "monuments", "v")
	g.Lookup("q", "en", "", "monuments")

	if got := g.Stats().Cache.Hits; got != 1 {
		t.Errorf("cache hits = %d, want 1", got)
	}
}
