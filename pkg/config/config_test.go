package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8090" {
		t.Errorf("expected :8090, got %s", cfg.Listen)
	}
	if cfg.Cache.MaxEntries != 100 {
		t.Errorf("expected 100 max entries, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.RateLimit.PerMinute != 10 {
		t.Errorf("expected 10 per minute, got %d", cfg.RateLimit.PerMinute)
	}
	if cfg.Session.GapTimeout != 30*time.Minute {
		t.Errorf("expected 30m gap timeout, got %v", cfg.Session.GapTimeout)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_UPSTREAM_URL", "http://answers.internal:9000")

	content := `
listen: ":9090"
db_path: "test.db"
upstream:
  url: ${TEST_UPSTREAM_URL}
  timeout: 5s
cache:
  enabled: true
  backend: sqlite
  max_entries: 500
  default_ttl: 15m
  ttl_overrides:
    weather: 2m
rate_limit:
  per_minute: 5
  per_hour: 20
  per_day: 100
audit:
  enabled: true
  include_queries: true
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.Upstream.URL != "http://answers.internal:9000" {
		t.Errorf("env var not expanded: got %s", cfg.Upstream.URL)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.MaxEntries != 500 {
		t.Errorf("expected 500 max entries, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.TTLOverrides["weather"] != 2*time.Minute {
		t.Errorf("expected 2m weather override, got %v", cfg.Cache.TTLOverrides["weather"])
	}
	if cfg.RateLimit.PerMinute != 5 {
		t.Errorf("expected 5 per minute, got %d", cfg.RateLimit.PerMinute)
	}
	if !cfg.Audit.Enabled {
		t.Error("expected audit enabled")
	}
	if !cfg.Audit.IncludeQueries {
		t.Error("expected include_queries true")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"bad backend", func(c *Config) { c.Cache.Backend = "redis" }},
		{"all horizons disabled", func(c *Config) {
			c.RateLimit = RateLimitConfig{}
		}},
		{"negative override", func(c *Config) {
			c.Cache.TTLOverrides = map[string]time.Duration{"weather": -time.Minute}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
