package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"henkan/internal/config"
	"henkan/internal/store"
)

func addStats(root *cobra.Command, g *globalOptions) {
	var prefix string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage counters persisted by earlier sessions.",
		Example: `
henkan stats
henkan stats --prefix CommitFrom
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), g, func(ctx context.Context, s *store.Store) error {
				return printStats(ctx, cmd, s, prefix)
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only counters starting with this prefix")

	var limit int
	snapshots := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored configuration snapshots and verify them.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), g, func(ctx context.Context, s *store.Store) error {
				return printSnapshots(ctx, cmd, s, limit)
			})
		},
	}
	snapshots.Flags().IntVar(&limit, "limit", 20, "number of snapshots to list")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete all usage counters and timings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), g, func(ctx context.Context, s *store.Store) error {
				if err := s.Reset(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "usage statistics cleared")
				return err
			})
		},
	}

	cmd.AddCommand(snapshots, reset)
	root.AddCommand(cmd)
}

func withStore(ctx context.Context, g *globalOptions, fn func(context.Context, *store.Store) error) error {
	_, cfg, err := g.load()
	if err != nil {
		return err
	}
	log, err := g.logger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	if !cfg.Store.Enabled {
		return errors.New("usage store is disabled; set store.enabled in the config")
	}
	s, err := store.Open(cfg.Store.Path,
		store.WithBusyTimeout(time.Duration(cfg.Store.BusyTimeoutMs)*time.Millisecond),
		store.WithLogger(log.WithComponent("store")),
	)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func printStats(ctx context.Context, cmd *cobra.Command, s *store.Store, prefix string) error {
	w := cmd.OutOrStdout()
	heading := color.New(color.Bold, color.Underline)
	faint := color.New(color.Faint)

	counters, err := s.Counters(ctx, prefix)
	if err != nil {
		return err
	}
	_, _ = heading.Fprintln(w, "Counters")
	if len(counters) == 0 {
		_, _ = faint.Fprintln(w, "  (none)")
	}
	for _, c := range counters {
		_, _ = fmt.Fprintf(w, "  %-40s %8d\n", c.Name, c.Value)
	}

	if prefix != "" {
		return nil
	}
	timings, err := s.Timings(ctx)
	if err != nil {
		return err
	}
	_, _ = heading.Fprintln(w, "\nTimings")
	if len(timings) == 0 {
		_, _ = faint.Fprintln(w, "  (none)")
	}
	for _, t := range timings {
		_, _ = fmt.Fprintf(w, "  %-24s n=%-6d avg=%-10s min=%-10s max=%s\n",
			t.Name, t.Count, t.Average(), t.Min, t.Max)
	}
	return nil
}

func printSnapshots(ctx context.Context, cmd *cobra.Command, s *store.Store, limit int) error {
	w := cmd.OutOrStdout()
	bad := color.New(color.FgRed, color.Bold)

	snaps, err := s.ConfigSnapshots(ctx, limit)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(w, "no snapshots")
		return err
	}
	for i := range snaps {
		snap := &snaps[i]
		status := "ok"
		if err := store.VerifySnapshot(snap); err != nil {
			status = bad.Sprint("CORRUPT")
		}
		_, _ = fmt.Fprintf(w, "%4d  %s  v%d  %-8s %x  %s\n",
			snap.ID, snap.CreatedAt.Format(time.RFC3339), snap.Version, snap.Reason, snap.Hash[:6], status)
	}
	if snaps[0].Version != config.Version {
		_, _ = color.New(color.FgYellow).Fprintf(w, "latest snapshot uses config version %d, current is %d\n",
			snaps[0].Version, config.Version)
	}
	return nil
}
