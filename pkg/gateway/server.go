// Package gateway is the HTTP front door for the protection layer: every
// query passes the rate limiter, then the response cache, and only on a
// miss reaches the upstream answer service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mitr-ai/mitrguard/pkg/audit"
	"github.com/mitr-ai/mitrguard/pkg/config"
	"github.com/mitr-ai/mitrguard/pkg/guard"
	"github.com/mitr-ai/mitrguard/pkg/intent"
	"github.com/mitr-ai/mitrguard/pkg/models"
	"github.com/mitr-ai/mitrguard/pkg/tracker"
)

// Server gates /v1/query behind the guard.
type Server struct {
	cfg        *config.Config
	guard      *guard.Guard
	classifier *intent.Classifier
	tracker    tracker.Tracker
	auditor    *audit.Logger
	client     *http.Client
	mux        *http.ServeMux
}

// New creates a gateway Server wired with all dependencies. The auditor
// may be nil when auditing is disabled.
func New(cfg *config.Config, g *guard.Guard, t tracker.Tracker, a *audit.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		guard:      g,
		classifier: intent.NewClassifier(),
		tracker:    t,
		auditor:    a,
		client:     &http.Client{Timeout: cfg.Upstream.Timeout},
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("/v1/query", s.handleQuery)
	s.mux.HandleFunc("/v1/stats", s.handleStats)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the gateway with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("mitrguard gateway listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	requestID := uuid.NewString()

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "query is required"})
		return
	}

	identity := req.Identity
	if identity == "" {
		identity = clientAddr(r)
	}

	sessionID := s.resolveSessionID(r.Context(), identity, req.SessionID)

	category := req.Category
	if category == "" {
		category = s.classifier.Classify(req.Query)
	}

	decision := s.guard.RateCheck(identity)
	if !decision.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{
			Error:      decision.Reason,
			RetryAfter: decision.RetryAfter,
		})
		s.audit(r.Context(), requestID, identity, sessionID, models.OutcomeRateLimited, category, req, decision.RetryAfter, start)
		return
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

	if answer, ok := s.guard.Lookup(req.Query, req.Language, req.Area, category); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, models.QueryResponse{
			RequestID: requestID,
			SessionID: sessionID,
			Answer:    answer,
			Category:  category,
			Cached:    true,
		})
		s.audit(r.Context(), requestID, identity, sessionID, models.OutcomeCacheHit, category, req, 0, start)
		s.track(r.Context(), identity, sessionID, category, req, true, start)
		return
	}
	w.Header().Set("X-Cache", "MISS")

	answer, err := s.askUpstream(r.Context(), req.Query, req.Language, req.Area, category)
	if err != nil {
		log.Printf("upstream: %v", err)
		writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "answer service unavailable"})
		s.audit(r.Context(), requestID, identity, sessionID, models.OutcomeUpstreamErr, category, req, 0, start)
		return
	}

	s.guard.Store(req.Query, req.Language, req.Area, category, answer)

	writeJSON(w, http.StatusOK, models.QueryResponse{
		RequestID: requestID,
		SessionID: sessionID,
		Answer:    answer,
		Category:  category,
		Cached:    false,
	})
	s.audit(r.Context(), requestID, identity, sessionID, models.OutcomeCacheMiss, category, req, 0, start)
	s.track(r.Context(), identity, sessionID, category, req, false, start)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := struct {
		Cache     models.CacheStats     `json:"cache"`
		RateLimit []models.WindowStatus `json:"rate_limit,omitempty"`
	}{
		Cache: s.guard.Stats().Cache,
	}
	if identity := r.URL.Query().Get("identity"); identity != "" {
		resp.RateLimit = s.guard.RateStatus(identity)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// askUpstream sends the query to the answer service and returns its answer.
func (s *Server) askUpstream(ctx context.Context, query, language, area, category string) (string, error) {
	target, err := url.Parse(s.cfg.Upstream.URL)
	if err != nil {
		return "", fmt.Errorf("invalid upstream URL: %w", err)
	}

	body, err := json.Marshal(models.AnswerRequest{
		Query:    query,
		Language: language,
		Area:     area,
		Category: category,
	})
	if err != nil {
		return "", fmt.Errorf("encode upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String()+"/answer", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream returned %d", resp.StatusCode)
	}

	var answer models.AnswerResponse
	if err := json.Unmarshal(respBody, &answer); err != nil {
		return "", fmt.Errorf("decode upstream response: %w", err)
	}
	return answer.Answer, nil
}

// resolveSessionID resolves a session for the identity; tracking failures
// never block the request.
func (s *Server) resolveSessionID(ctx context.Context, identity, explicitID string) string {
	if s.tracker == nil {
		return explicitID
	}
	sid, err := s.tracker.ResolveSession(ctx, identity, explicitID, s.cfg.Session.GapTimeout)
	if err != nil {
		log.Printf("session resolve: %v", err)
		return ""
	}
	return sid
}

func (s *Server) audit(ctx context.Context, requestID, identity, sessionID, outcome, category string, req models.QueryRequest, retryAfter int, start time.Time) {
	if s.auditor == nil {
		return
	}
	hash, prefix := audit.HashIdentity(identity)
	err := s.auditor.Log(ctx, models.AuditEntry{
		RequestID:      requestID,
		IdentityHash:   hash,
		IdentityPrefix: prefix,
		SessionID:      sessionID,
		Outcome:        outcome,
		Category:       category,
		Language:       req.Language,
		Area:           req.Area,
		Query:          req.Query,
		RetryAfter:     retryAfter,
		LatencyMs:      time.Since(start).Milliseconds(),
	})
	if err != nil {
		log.Printf("audit log: %v", err)
	}
}

func (s *Server) track(ctx context.Context, identity, sessionID, category string, req models.QueryRequest, cached bool, start time.Time) {
	if s.tracker == nil {
		return
	}
	err := s.tracker.Record(ctx, models.QueryRecord{
		Identity:  identity,
		SessionID: sessionID,
		Category:  category,
		Language:  req.Language,
		Area:      req.Area,
		Cached:    cached,
		LatencyMs: time.Since(start).Milliseconds(),
	})
	if err != nil {
		log.Printf("track query: %v", err)
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
