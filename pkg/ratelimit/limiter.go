package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/models"
)

// Window is one rate-limit horizon. A non-positive Limit disables it.
type Window struct {
	Name  string
	Limit int
	Span  time.Duration
}

// DefaultWindows are the stock per-identity ceilings.
func DefaultWindows() []Window {
	return []Window{
		{Name: "minute", Limit: 10, Span: time.Minute},
		{Name: "hour", Limit: 50, Span: time.Hour},
		{Name: "day", Limit: 200, Span: 24 * time.Hour},
	}
}

// Limiter is a sliding-window rate limiter tracking raw request timestamps
// per identity. Each enabled window is evaluated independently against the
// same history; the first violated window rejects the request. Check and
// record happen under a single lock hold, so two concurrent requests from
// one identity cannot both slip under the limit.
type Limiter struct {
	mu       sync.Mutex
	windows  []Window // ordered shortest span first
	requests map[string][]time.Time

	now func() time.Time
}

// New creates a Limiter. Windows with non-positive limits are dropped;
// the remainder are ordered shortest span first.
func New(windows []Window) *Limiter {
	var enabled []Window
	for _, w := range windows {
		if w.Limit > 0 && w.Span > 0 {
			enabled = append(enabled, w)
		}
	}
	for i := 1; i < len(enabled); i++ {
		for j := i; j > 0 && enabled[j].Span < enabled[j-1].Span; j-- {
			enabled[j], enabled[j-1] = enabled[j-1], enabled[j]
		}
	}
	return &Limiter{
		windows:  enabled,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow checks every window for the identity and, when all pass, records
// the request. Rejections name the violated horizon and how long to wait.
func (l *Limiter) Allow(identity string) models.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(identity, now)

	history := l.requests[identity]
	for _, w := range l.windows {
		used := countSince(history, now.Add(-w.Span))
		if used >= w.Limit {
			return models.Decision{
				Allowed:    false,
				Reason:     rejectionMessage(w, used),
				Horizon:    w.Name,
				Remaining:  l.remainingLocked(identity, now),
				RetryAfter: l.retryAfterLocked(identity, w, now),
			}
		}
	}

	l.requests[identity] = append(history, now)
	return models.Decision{
		Allowed:   true,
		Remaining: l.remainingLocked(identity, now),
	}
}

// Peek evaluates the windows without recording a request. For status
// displays only; callers gating real work must use Allow.
func (l *Limiter) Peek(identity string) models.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(identity, now)

	history := l.requests[identity]
	for _, w := range l.windows {
		used := countSince(history, now.Add(-w.Span))
		if used >= w.Limit {
			return models.Decision{
				Allowed:    false,
				Reason:     rejectionMessage(w, used),
				Horizon:    w.Name,
				Remaining:  l.remainingLocked(identity, now),
				RetryAfter: l.retryAfterLocked(identity, w, now),
			}
		}
	}
	return models.Decision{Allowed: true, Remaining: l.remainingLocked(identity, now)}
}

// Remaining returns how many requests the identity has left in the
// shortest enabled window, floored at zero.
func (l *Limiter) Remaining(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneLocked(identity, now)
	return l.remainingLocked(identity, now)
}

// RetryAfter returns the seconds until the identity's oldest request in the
// shortest enabled window slides out of it. Zero for an unknown identity.
func (l *Limiter) RetryAfter(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(identity, now)
	if len(l.windows) == 0 {
		return 0
	}
	return l.retryAfterLocked(identity, l.windows[0], now)
}

// Status reports per-window usage for the identity.
func (l *Limiter) Status(identity string) []models.WindowStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(identity, now)

	history := l.requests[identity]
	statuses := make([]models.WindowStatus, 0, len(l.windows))
	for _, w := range l.windows {
		used := countSince(history, now.Add(-w.Span))
		remaining := w.Limit - used
		if remaining < 0 {
			remaining = 0
		}
		statuses = append(statuses, models.WindowStatus{
			Horizon:   w.Name,
			Limit:     w.Limit,
			Used:      used,
			Remaining: remaining,
		})
	}
	return statuses
}

// pruneLocked drops timestamps older than the longest window and removes
// the identity entirely once its history is empty.
func (l *Limiter) pruneLocked(identity string, now time.Time) {
	history, ok := l.requests[identity]
	if !ok || len(l.windows) == 0 {
		return
	}

	cutoff := now.Add(-l.windows[len(l.windows)-1].Span)
	kept := history[:0]
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.requests, identity)
		return
	}
	l.requests[identity] = kept
}

func (l *Limiter) remainingLocked(identity string, now time.Time) int {
	if len(l.windows) == 0 {
		return 0
	}
	w := l.windows[0]
	used := countSince(l.requests[identity], now.Add(-w.Span))
	if used >= w.Limit {
		return 0
	}
	return w.Limit - used
}

// retryAfterLocked computes when the oldest timestamp inside the window
// falls outside it.
func (l *Limiter) retryAfterLocked(identity string, w Window, now time.Time) int {
	cutoff := now.Add(-w.Span)
	var oldest time.Time
	for _, ts := range l.requests[identity] {
		if ts.After(cutoff) && (oldest.IsZero() || ts.Before(oldest)) {
			oldest = ts
		}
	}
	if oldest.IsZero() {
		return 0
	}
	wait := oldest.Add(w.Span).Sub(now)
	if wait < 0 {
		return 0
	}
	return int(wait.Seconds() + 0.999) // round up to whole seconds
}

func countSince(history []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range history {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func rejectionMessage(w Window, used int) string {
	switch w.Name {
	case "minute":
		return fmt.Sprintf("Too many requests. Please wait a minute. (%d/%d)", used, w.Limit)
	case "hour":
		return fmt.Sprintf("Hourly limit reached. Please try again later. (%d/%d)", used, w.Limit)
	case "day":
		return fmt.Sprintf("Daily limit reached. Come back tomorrow! (%d/%d)", used, w.Limit)
	default:
		return fmt.Sprintf("Rate limit reached for the last %s. (%d/%d)", w.Span, used, w.Limit)
	}
}
