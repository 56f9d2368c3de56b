package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all mitrguard configuration.
type Config struct {
	Listen    string             `yaml:"listen"`
	DBPath    string             `yaml:"db_path"`
	Upstream  UpstreamConfig     `yaml:"upstream"`
	Cache     CacheConfig        `yaml:"cache"`
	RateLimit RateLimitConfig    `yaml:"rate_limit"`
	Session   SessionConfig      `yaml:"session"`
	Audit     models.AuditConfig `yaml:"audit"`
}

// UpstreamConfig identifies the answer service fronted by the gateway.
type UpstreamConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Backend    string        `yaml:"backend"` // "memory" (default) or "sqlite"
	MaxEntries int           `yaml:"max_entries"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
	// TTLOverrides replaces the built-in TTL for specific categories.
	TTLOverrides map[string]time.Duration `yaml:"ttl_overrides"`
}

// RateLimitConfig sets per-identity request ceilings. A horizon with a
// non-positive limit is disabled.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
	PerDay    int `yaml:"per_day"`
}

// SessionConfig controls session auto-detection.
type SessionConfig struct {
	GapTimeout time.Duration `yaml:"gap_timeout"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8090",
		DBPath: "mitrguard.db",
		Upstream: UpstreamConfig{
			Timeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "memory",
			MaxEntries: 100,
			DefaultTTL: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 10,
			PerHour:   50,
			PerDay:    200,
		},
		Session: SessionConfig{
			GapTimeout: 30 * time.Minute,
		},
		Audit: models.AuditConfig{
			Enabled:       false,
			DBPath:        "mitrguard_audit.db",
			RetentionDays: 30,
			MaxQuerySize:  4096,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the protection layer cannot run with.
func (c *Config) Validate() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "sqlite" {
		return fmt.Errorf("cache.backend must be %q or %q, got %q", "memory", "sqlite", c.Cache.Backend)
	}
	if c.RateLimit.PerMinute <= 0 && c.RateLimit.PerHour <= 0 && c.RateLimit.PerDay <= 0 {
		return fmt.Errorf("rate_limit: at least one horizon must be enabled")
	}
	for cat, ttl := range c.Cache.TTLOverrides {
		if ttl < 0 {
			return fmt.Errorf("cache.ttl_overrides[%s]: negative TTL", cat)
		}
	}
	return nil
}
