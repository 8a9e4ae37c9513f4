package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the hash cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show hash cache contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.cacheValue()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cache.Enabled() {
				fmt.Fprintln(out, "hash cache is disabled (paths.cache_path is empty)")
				return nil
			}
			stats, err := cache.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s: %d entries\n", stats.Path, stats.Entries)
			if len(stats.PerAlgorithm) == 0 {
				return nil
			}
			algorithms := make([]string, 0, len(stats.PerAlgorithm))
			for algorithm := range stats.PerAlgorithm {
				algorithms = append(algorithms, algorithm)
			}
			sort.Strings(algorithms)
			rows := make([][]string, 0, len(algorithms))
			for _, algorithm := range algorithms {
				rows = append(rows, []string{algorithm, fmt.Sprintf("%d", stats.PerAlgorithm[algorithm])})
			}
			fmt.Fprintln(out, renderTable([]string{"Algorithm", "Entries"}, rows, 1))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.cacheValue()
			if err != nil {
				return err
			}
			if !cache.Enabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "hash cache is disabled (paths.cache_path is empty)")
				return nil
			}
			if err := cache.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "hash cache cleared")
			return nil
		},
	}
}
