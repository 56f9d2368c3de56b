package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mitr-ai/mitrguard/pkg/config"
	"github.com/mitr-ai/mitrguard/pkg/tracker"
	"github.com/spf13/cobra"
)

func newLimitsCmd() *cobra.Command {
	var (
		configPath string
		identity   string
	)

	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Show an identity's recorded usage vs the configured rate limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			ctx := context.Background()
			now := time.Now().UTC()

			horizons := []struct {
				name  string
				limit int
				span  time.Duration
			}{
				{"minute", cfg.RateLimit.PerMinute, time.Minute},
				{"hour", cfg.RateLimit.PerHour, time.Hour},
				{"day", cfg.RateLimit.PerDay, 24 * time.Hour},
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WINDOW\tLIMIT\tUSED\tREMAINING")
			for _, h := range horizons {
				if h.limit <= 0 {
					continue
				}
				used, err := tr.CountSince(ctx, identity, now.Add(-h.span))
				if err != nil {
					return err
				}
				remaining := int64(h.limit) - used
				if remaining < 0 {
					remaining = 0
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", h.name, h.limit, used, remaining)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "mitrguard.yaml", "path to config file")
	cmd.Flags().StringVar(&identity, "identity", "", "identity to inspect")
	return cmd
}
