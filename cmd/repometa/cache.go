package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/repometa/config"
)

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the metadata cache",
	}
	cmd.AddCommand(newCacheStatsCommand(a))
	cmd.AddCommand(newCacheClearCommand(a))
	return cmd
}

type cacheStats struct {
	Backend string `json:"backend"`
	Dir     string `json:"dir,omitempty"`
	Durable int    `json:"durable"`
	Entries int    `json:"entries"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

func newCacheStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			keys, err := svc.DurableKeys()
			if err != nil {
				return err
			}
			mem := svc.Stats()
			stats := cacheStats{
				Backend: a.cfg.Cache.Backend,
				Durable: len(keys),
				Entries: mem.Entries,
				Hits:    mem.Hits,
				Misses:  mem.Misses,
			}
			if a.cfg.Cache.Backend != config.BackendNone {
				stats.Dir = a.cfg.Cache.Dir
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return writeJSON(out, stats)
			}
			fmt.Fprintf(out, "backend: %s\n", stats.Backend)
			if stats.Dir != "" {
				fmt.Fprintf(out, "dir:     %s\n", stats.Dir)
			}
			fmt.Fprintf(out, "durable: %d\n", stats.Durable)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s\n", k)
			}
			return nil
		},
	}
}

func newCacheClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			svc.ClearCache()
			a.log.Info("cache cleared")
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}
