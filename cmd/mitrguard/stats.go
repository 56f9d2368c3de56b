package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mitr-ai/mitrguard/pkg/config"
	"github.com/mitr-ai/mitrguard/pkg/tracker"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		identity   string
		sessions   bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := context.Background()

			// Session list view
			if sessions {
				sess, err := tr.ListSessions(ctx, identity)
				if err != nil {
					return err
				}
				if len(sess) == 0 {
					fmt.Println("No sessions found.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SESSION ID\tIDENTITY\tSTARTED\tLAST ACTIVITY\tREQUESTS")
				for _, s := range sess {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
						s.ID, s.Identity, s.StartedAt.Format("2006-01-02T15:04:05"), s.LastActivity.Format("2006-01-02T15:04:05"), s.RequestCount)
				}
				return w.Flush()
			}

			// Default: usage summary
			summaries, err := tr.Summary(ctx, identity)
			if err != nil {
				return err
			}

			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTITY\tCATEGORY\tREQUESTS\tCACHE HITS\tAVG LATENCY")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1fms\n",
					s.Identity, s.Category, s.RequestCount, s.CacheHits, s.AvgLatencyMs)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "mitrguard.yaml", "path to config file")
	cmd.Flags().StringVar(&identity, "identity", "", "filter by identity")
	cmd.Flags().BoolVar(&sessions, "sessions", false, "list sessions")
	return cmd
}
