package main

import (
	"fmt"

	"github.com/mitr-ai/mitrguard/pkg/cache"
	cachesqlite "github.com/mitr-ai/mitrguard/pkg/cache/sqlite"
	"github.com/mitr-ai/mitrguard/pkg/config"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := openSQLiteStore(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats := c.Stats()
			fmt.Printf("Entries:       %d\n", stats.Entries)
			fmt.Printf("Hits:          %d\n", stats.Hits)
			fmt.Printf("Misses:        %d\n", stats.Misses)
			fmt.Printf("Invalidations: %d\n", stats.Invalidations)
			fmt.Printf("Hit Rate:      %.1f%%\n", stats.HitRate)
			fmt.Printf("Avg TTL:       %.0fs\n", stats.AvgTTLSeconds)
			return nil
		},
	}

	var category string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := openSQLiteStore(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			if category != "" {
				c.ClearCategory(category)
				fmt.Printf("Cleared cached responses for category %q.\n", category)
				return nil
			}
			c.Clear()
			fmt.Println("All cached responses cleared.")
			return nil
		},
	}
	clearCmd.Flags().StringVar(&category, "category", "", "only clear entries for this category")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mitrguard.yaml", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

// openSQLiteStore opens the persistent cache backend directly. The command
// surface only works against the sqlite backend; a memory cache lives inside
// the gateway process and is reachable there via /v1/stats.
func openSQLiteStore(configPath string) (*cachesqlite.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Cache.Backend != "sqlite" {
		return nil, nil, fmt.Errorf("cache backend is %q; cache commands need the sqlite backend", cfg.Cache.Backend)
	}

	policy := cache.NewPolicy(cfg.Cache.DefaultTTL, cfg.Cache.TTLOverrides)
	c, err := cachesqlite.New(cfg.DBPath, policy, cfg.Cache.MaxEntries)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}
