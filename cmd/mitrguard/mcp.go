package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitr-ai/mitrguard/pkg/audit"
	"github.com/mitr-ai/mitrguard/pkg/cache"
	cachesqlite "github.com/mitr-ai/mitrguard/pkg/cache/sqlite"
	"github.com/mitr-ai/mitrguard/pkg/config"
	"github.com/mitr-ai/mitrguard/pkg/mcp"
	"github.com/mitr-ai/mitrguard/pkg/tracker"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start mitrguard as an MCP server over stdio",
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

			var auditor *audit.Logger
			if cfg.Audit.Enabled {
				auditor, err = audit.New(cfg.Audit)
				if err != nil {
					return fmt.Errorf("init audit log: %w", err)
				}
				defer func() { _ = auditor.Close() }()
			}

			// The sqlite cache backend is shared with the gateway process;
			// a memory cache is not reachable from here.
			var store cache.Store
			if cfg.Cache.Enabled && cfg.Cache.Backend == "sqlite" {
				policy := cache.NewPolicy(cfg.Cache.DefaultTTL, cfg.Cache.TTLOverrides)
				s, err := cachesqlite.New(cfg.DBPath, policy, cfg.Cache.MaxEntries)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				defer func() { _ = s.Close() }()
				store = s
			}

			srv := mcp.New(tr, store, auditor, cfg.RateLimit, version)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "mitrguard.yaml", "path to config file")
	return cmd
}
