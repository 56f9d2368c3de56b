package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mitr-ai/mitrguard/pkg/cache"
	"github.com/mitr-ai/mitrguard/pkg/models"
)

// Store is a response cache persisted in SQLite. It implements the same
// contract as the in-memory store, so a deployment that wants cache entries
// to survive restarts swaps it in behind cache.Store. Database failures
// degrade to misses; a cache is never allowed to fail a request.
type Store struct {
	db         *sql.DB
	policy     cache.TTLPolicy
	maxEntries int

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

const createTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key   TEXT PRIMARY KEY,
	value       TEXT NOT NULL,
	category    TEXT NOT NULL,
	area        TEXT NOT NULL DEFAULT '',
	cached_date TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	ttl_seconds INTEGER NOT NULL,
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_category ON cache_entries(category);
CREATE INDEX IF NOT EXISTS idx_cache_created ON cache_entries(created_at);
`

// New opens the cache database and runs auto-migration.
func New(dbPath string, policy cache.TTLPolicy, maxEntries int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &Store{db: db, policy: policy, maxEntries: maxEntries}, nil
}

// Get retrieves a cached response. Stale rows are deleted on the failed read.
func (s *Store) Get(key, category string, rctx cache.Context) (string, bool) {
	var (
		value      string
		meta       cache.Metadata
		ttlSeconds int64
		createdAt  time.Time
	)

	err := s.db.QueryRow(
		`SELECT value, category, area, cached_date, query, ttl_seconds, created_at
		 FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&value, &meta.Category, &meta.Area, &meta.Date, &meta.Query, &ttlSeconds, &createdAt)

	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("cache get: %v", err)
		}
		s.misses.Add(1)
		return "", false
	}

	meta.TTL = time.Duration(ttlSeconds) * time.Second
	now := time.Now().UTC()
	age := now.Sub(createdAt)

	if cache.ShouldInvalidate(meta, age, rctx, now) {
		s.delete(key)
		s.invalidations.Add(1)
		s.misses.Add(1)
		return "", false
	}

	ttl := meta.TTL
	if ttl <= 0 {
		cat := category
		if cat == "" {
			cat = meta.Category
		}
		ttl = s.policy.TTL(cat)
	}
	if age > ttl {
		s.delete(key)
		s.misses.Add(1)
		return "", false
	}

	s.hits.Add(1)
	return value, true
}

// Set stores a response and trims the table back to the newest maxEntries
// rows. Zero-TTL categories are dropped.
func (s *Store) Set(key, value, category string, meta cache.Metadata) {
	if !s.policy.ShouldCache(category) {
		return
	}

	now := time.Now().UTC()
	category = strings.ToLower(category)
	if meta.Date == "" {
		meta.Date = now.Format("2006-01-02")
	}
	if len(meta.Query) > 100 {
		meta.Query = meta.Query[:100]
	}
	if meta.TTL <= 0 {
		meta.TTL = s.policy.TTL(category)
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO cache_entries
		 (cache_key, value, category, area, cached_date, query, ttl_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key, value, category, meta.Area, meta.Date, meta.Query, int64(meta.TTL.Seconds()), now,
	)
	if err != nil {
		log.Printf("cache set: %v", err)
		return
	}

	_, err = s.db.Exec(
		`DELETE FROM cache_entries WHERE cache_key NOT IN
		 (SELECT cache_key FROM cache_entries ORDER BY created_at DESC LIMIT ?)`,
		s.maxEntries,
	)
	if err != nil {
		log.Printf("cache cleanup: %v", err)
	}
}

func (s *Store) delete(key string) {
	if _, err := s.db.Exec(`DELETE FROM cache_entries WHERE cache_key = ?`, key); err != nil {
		log.Printf("cache evict: %v", err)
	}
}

// Clear removes all entries unconditionally.
func (s *Store) Clear() {
	if _, err := s.db.Exec(`DELETE FROM cache_entries`); err != nil {
		log.Printf("cache clear: %v", err)
	}
}

// ClearCategory removes entries whose stored category matches.
func (s *Store) ClearCategory(category string) {
	if _, err := s.db.Exec(`DELETE FROM cache_entries WHERE category = ?`, strings.ToLower(category)); err != nil {
		log.Printf("cache clear category: %v", err)
	}
}

// Stats returns cumulative counters plus the live entry count and average TTL.
func (s *Store) Stats() models.CacheStats {
	stats := models.CacheStats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Invalidations: s.invalidations.Load(),
	}
	stats.TotalQueries = stats.Hits + stats.Misses
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries) * 100
	}

	var avgTTL sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT COUNT(*), AVG(ttl_seconds) FROM cache_entries`,
	).Scan(&stats.Entries, &avgTTL)
	if err != nil {
		log.Printf("cache stats: %v", err)
		return stats
	}
	if avgTTL.Valid {
		stats.AvgTTLSeconds = avgTTL.Float64
	}
	return stats
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
