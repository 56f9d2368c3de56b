package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/audit"
	"github.com/mitr-ai/mitrguard/pkg/cache"
	cachesqlite "github.com/mitr-ai/mitrguard/pkg/cache/sqlite"
	"github.com/mitr-ai/mitrguard/pkg/config"
	"github.com/mitr-ai/mitrguard/pkg/gateway"
	"github.com/mitr-ai/mitrguard/pkg/guard"
	"github.com/mitr-ai/mitrguard/pkg/ratelimit"
	"github.com/mitr-ai/mitrguard/pkg/tracker"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the query gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init tracker: %w", err)
			}
			defer func() { _ = tr.Close() }()

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("init cache: %w", err)
			}
			defer closeStore()

			var auditor *audit.Logger
			if cfg.Audit.Enabled {
				auditor, err = audit.New(cfg.Audit)
				if err != nil {
					return fmt.Errorf("init audit log: %w", err)
				}
				defer func() { _ = auditor.Close() }()
			}

			limiter := ratelimit.New(limitWindows(cfg.RateLimit))
			g := guard.New(limiter, store)
			srv := gateway.New(cfg, g, tr, auditor)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("starting mitrguard gateway with config: %s", configPath)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "mitrguard.yaml", "path to config file")
	return cmd
}

// openStore builds the configured cache backend. The returned func releases
// any backend resources and is safe to call for the memory backend too.
func openStore(cfg *config.Config) (cache.Store, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}

	policy := cache.NewPolicy(cfg.Cache.DefaultTTL, cfg.Cache.TTLOverrides)
	if cfg.Cache.Backend == "sqlite" {
		s, err := cachesqlite.New(cfg.DBPath, policy, cfg.Cache.MaxEntries)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return cache.NewMemoryStore(policy, cfg.Cache.MaxEntries), func() {}, nil
}

// limitWindows maps the rate limit config onto limiter windows. Disabled
// horizons are dropped by the limiter.
func limitWindows(rl config.RateLimitConfig) []ratelimit.Window {
	return []ratelimit.Window{
		{Name: "minute", Limit: rl.PerMinute, Span: time.Minute},
		{Name: "hour", Limit: rl.PerHour, Span: time.Hour},
		{Name: "day", Limit: rl.PerDay, Span: 24 * time.Hour},
	}
}
