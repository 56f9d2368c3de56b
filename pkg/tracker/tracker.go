package tracker

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mitr-ai/mitrguard/pkg/models"
)

// Tracker records and queries answered-query analytics.
type Tracker interface {
	// Record stores a query record.
	Record(ctx context.Context, rec models.QueryRecord) error
	// Summary returns aggregated summaries, optionally filtered by identity.
	Summary(ctx context.Context, identity string) ([]models.QuerySummary, error)
	// CountSince returns how many queries an identity made since a given time.
	CountSince(ctx context.Context, identity string, since time.Time) (int64, error)
	// ResolveSession returns a session ID for the identity, using the explicit
	// session ID if provided, otherwise auto-detecting by activity gap.
	ResolveSession(ctx context.Context, identity, explicitID string, gapTimeout time.Duration) (string, error)
	// ListSessions returns all sessions, optionally filtered by identity.
	ListSessions(ctx context.Context, identity string) ([]models.Session, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createEventsTable = `
CREATE TABLE IF NOT EXISTS query_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identity TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	area TEXT NOT NULL DEFAULT '',
	cached INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_identity_time ON query_events(identity, created_at);
`

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	identity TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	last_activity DATETIME NOT NULL,
	request_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_identity ON sessions(identity);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createEventsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}
	if _, err := db.Exec(createSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sessions table: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// generateSessionID creates a session ID like sess_20260826_a3f9c2.
func generateSessionID() string {
	b := make([]byte, 3)
	rand.Read(b)
	return fmt.Sprintf("sess_%s_%s", time.Now().UTC().Format("20060102"), hex.EncodeToString(b))
}

// Record stores a query record and updates session counters.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.QueryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO query_events (identity, session_id, category, language, area, cached, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Identity, rec.SessionID, rec.Category, rec.Language, rec.Area, rec.Cached, rec.LatencyMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record query: %w", err)
	}

	if rec.SessionID != "" {
		_, err = t.db.ExecContext(ctx,
			`UPDATE sessions SET last_activity = ?, request_count = request_count + 1 WHERE id = ?`,
			rec.CreatedAt, rec.SessionID,
		)
		if err != nil {
			return fmt.Errorf("update session counters: %w", err)
		}
	}

	return nil
}

// ResolveSession returns a session ID. If explicitID is non-empty, it ensures
// the session row exists and returns it. Otherwise it reuses the identity's
// most recent session when it is within gapTimeout, or creates a new one.
func (t *SQLiteTracker) ResolveSession(ctx context.Context, identity, explicitID string, gapTimeout time.Duration) (string, error) {
	now := time.Now().UTC()

	if explicitID != "" {
		_, err := t.db.ExecContext(ctx,
			`INSERT INTO sessions (id, identity, started_at, last_activity) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			explicitID, identity, now, now,
		)
		if err != nil {
			return "", fmt.Errorf("ensure session: %w", err)
		}
		return explicitID, nil
	}

	var lastID string
	var lastActivity time.Time
	err := t.db.QueryRowContext(ctx,
		`SELECT id, last_activity FROM sessions WHERE identity = ? ORDER BY last_activity DESC LIMIT 1`,
		identity,
	).Scan(&lastID, &lastActivity)

	if err == nil && now.Sub(lastActivity) <= gapTimeout {
		return lastID, nil
	}

	newID := generateSessionID()
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO sessions (id, identity, started_at, last_activity) VALUES (?, ?, ?, ?)`,
		newID, identity, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return newID, nil
}

// ListSessions returns all sessions, optionally filtered by identity.
func (t *SQLiteTracker) ListSessions(ctx context.Context, identity string) ([]models.Session, error) {
	query := `SELECT id, identity, started_at, last_activity, request_count FROM sessions`
	var args []any
	if identity != "" {
		query += ` WHERE identity = ?`
		args = append(args, identity)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Identity, &s.StartedAt, &s.LastActivity, &s.RequestCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CountSince returns how many queries an identity made since a given time.
func (t *SQLiteTracker) CountSince(ctx context.Context, identity string, since time.Time) (int64, error) {
	var count int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM query_events WHERE identity = ? AND created_at >= ?`,
		identity, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count queries: %w", err)
	}
	return count, nil
}

// Summary returns aggregated query counts grouped by identity and category.
func (t *SQLiteTracker) Summary(ctx context.Context, identity string) ([]models.QuerySummary, error) {
	query := `SELECT identity, category, COUNT(*), SUM(cached), AVG(latency_ms)
		 FROM query_events`
	var args []any
	if identity != "" {
		query += ` WHERE identity = ?`
		args = append(args, identity)
	}
	query += ` GROUP BY identity, category ORDER BY identity, category`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.QuerySummary
	for rows.Next() {
		var s models.QuerySummary
		var avgLatency sql.NullFloat64
		if err := rows.Scan(&s.Identity, &s.Category, &s.RequestCount, &s.CacheHits, &avgLatency); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.AvgLatencyMs = avgLatency.Float64
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
