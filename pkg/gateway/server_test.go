package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/cache"
	"github.com/mitr-ai/mitrguard/pkg/config"
	"github.com/mitr-ai/mitrguard/pkg/guard"
	"github.com/mitr-ai/mitrguard/pkg/models"
	"github.com/mitr-ai/mitrguard/pkg/ratelimit"
	"github.com/mitr-ai/mitrguard/pkg/tracker"
)

func setupGateway(t *testing.T, upstream *httptest.Server, limits config.RateLimitConfig) *Server {
	t.Helper()

	tr, err := tracker.New(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })

	cfg := config.Default()
	cfg.Upstream.URL = upstream.URL
	cfg.RateLimit = limits

	limiter := ratelimit.New([]ratelimit.Window{
		{Name: "minute", Limit: limits.PerMinute, Span: time.Minute},
		{Name: "hour", Limit: limits.PerHour, Span: time.Hour},
		{Name: "day", Limit: limits.PerDay, Span: 24 * time.Hour},
	})
	store := cache.NewMemoryStore(cache.DefaultPolicy(), cfg.Cache.MaxEntries)

	return New(cfg, guard.New(limiter, store), tr, nil)
}

func answerService(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.AnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad upstream request: %v", err)
		}
		json.NewEncoder(w).Encode(models.AnswerResponse{Answer: answer})
	}))
}

func TestQueryMissThenHit(t *testing.T) {
	upstream := answerService(t, "Charminar was built in 1591.")
	defer upstream.Close()

	srv := setupGateway(t, upstream, config.RateLimitConfig{PerMinute: 10})

	body := `{"identity":"u1","query":"tell me about charminar","language":"en"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Cache") != "MISS" {
		t.Error("expected cache miss on first request")
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Charminar was built in 1591." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Category != "monuments" {
		t.Errorf("category = %q, want monuments", resp.Category)
	}
	if resp.Cached {
		t.Error("first response must not be marked cached")
	}

	req2 := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	w2 := httptest.NewRecorder()
	srv.ServeHTTP(w2, req2)

	if w2.Header().Get("X-Cache") != "HIT" {
		t.Error("expected cache hit on second request")
	}
	var resp2 models.QueryResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &resp2); err != nil {
		t.Fatal(err)
	}
	if !resp2.Cached {
		t.Error("second response should be marked cached")
	}
}

func TestRateLimited(t *testing.T) {
	upstream := answerService(t, "ok")
	defer upstream.Close()

	srv := setupGateway(t, upstream, config.RateLimitConfig{PerMinute: 2})

	body := `{"identity":"u1","query":"hello"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == "" {
		t.Error("expected a user-facing error message")
	}
}

func TestRateLimitByIdentity(t *testing.T) {
	upstream := answerService(t, "ok")
	defer upstream.Close()

	srv := setupGateway(t, upstream, config.RateLimitConfig{PerMinute: 1})

	for _, tc := range []struct {
		body string
		want int
	}{
		{`{"identity":"a","query":"hello"}`, http.StatusOK},
		{`{"identity":"a","query":"hello again"}`, http.StatusTooManyRequests},
		{`{"identity":"b","query":"hello"}`, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(tc.body))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s: got %d, want %d", tc.body, w.Code, tc.want)
		}
	}
}

func TestExplicitCategoryWins(t *testing.T) {
	upstream := answerService(t, "ok")
	defer upstream.Close()

	srv := setupGateway(t, upstream, config.RateLimitConfig{PerMinute: 10})

	body := `{"identity":"u1","query":"anything at all","category":"weather"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var resp models.QueryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Category != "weather" {
		t.Errorf("category = %q, want weather", resp.Category)
	}
}

func TestUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	srv := setupGateway(t, upstream, config.RateLimitConfig{PerMinute: 10})

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"identity":"u1","query":"hello"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestBadRequest(t *testing.T) {
	upstream := answerService(t, "ok")
	defer upstream.Close()

	srv := setupGateway(t, upstream, config.RateLimitConfig{PerMinute: 10})

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"identity":"u1"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing query: expected 400, got %d", w.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	w2 := httptest.NewRecorder()
	srv.ServeHTTP(w2, req2)
	if w2.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET query: expected 405, got %d", w2.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	upstream := answerService(t, "ok")
	defer upstream.Close()

	srv := setupGateway(t, upstream, config.RateLimitConfig{PerMinute: 10})

	// One miss, one hit.
	body := `{"identity":"u1","query":"tell me about charminar"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
		srv.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/stats?identity=u1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Cache     models.CacheStats     `json:"cache"`
		RateLimit []models.WindowStatus `json:"rate_limit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Cache.Hits != 1 || resp.Cache.Misses != 1 {
		t.Errorf("cache stats = %+v, want 1 hit and 1 miss", resp.Cache)
	}
	if len(resp.RateLimit) == 0 || resp.RateLimit[0].Used != 2 {
		t.Errorf("rate limit status = %+v", resp.RateLimit)
	}
}
