package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/notelens/notelens/internal/config"
	"github.com/notelens/notelens/internal/core/cache"
	apperrors "github.com/notelens/notelens/internal/errors"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the response cache",
	Long: `Inspect and manage the response cache.

With the memory backend, each process holds its own cache, so these
commands mostly matter for the shared redis backend.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		if cfg == nil {
			return apperrors.NewUnknownError("configuration not loaded")
		}

		c := buildCache(cfg.Cache)

		reporter, ok := c.(cache.StatsReporter)
		if !ok {
			length, err := c.Len(cmd.Context())
			if err != nil {
				return apperrors.WrapStorage(cmd.Context(), err, "failed to read cache size")
			}
			fmt.Printf("Backend: %s\n", cfg.Cache.Backend)
			fmt.Printf("Entries: %d\n", length)
			return nil
		}

		stats, err := reporter.Stats(cmd.Context())
		if err != nil {
			return apperrors.WrapStorage(cmd.Context(), err, "failed to read cache stats")
		}

		fmt.Printf("Backend: %s\n", cfg.Cache.Backend)
		fmt.Printf("Entries: %d / %d\n", stats.Entries, stats.Capacity)
		fmt.Printf("Hits: %d\n", stats.Hits)
		fmt.Printf("Misses: %d\n", stats.Misses)
		if stats.Oldest != nil {
			fmt.Printf("Oldest entry: %s\n", humanize.Time(*stats.Oldest))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		if cfg == nil {
			return apperrors.NewUnknownError("configuration not loaded")
		}

		c := buildCache(cfg.Cache)
		if err := c.Clear(cmd.Context()); err != nil {
			return apperrors.WrapStorage(cmd.Context(), err, "failed to clear cache")
		}

		fmt.Println("Cache cleared.")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
