package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FranksOps/rival/internal/cache"
	"github.com/FranksOps/rival/internal/storage"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the artifact cache",
	}
	cmd.AddCommand(cacheStatsCmd(), cacheSweepCmd(), cacheForgetCmd())
	return cmd
}

// withStore opens only the cache; the cache commands need no search or LLM
// credentials.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *cache.Store) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", "err", err)
		}
	}()
	return fn(ctx, store)
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count cached records per class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store *cache.Store) error {
				stats, err := store.Stats(ctx)
				if err != nil {
					return err
				}
				policy := store.Policy()
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CLASS\tRECORDS\tWINDOW")
				for _, class := range storage.Classes() {
					window, _ := policy.Window(class)
					fmt.Fprintf(tw, "%s\t%d\t%s\n", class, stats[class], window)
				}
				return tw.Flush()
			})
		},
	}
}

func cacheSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove records older than their freshness window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store *cache.Store) error {
				removed, err := store.ClearExpired(ctx)
				for _, class := range storage.Classes() {
					fmt.Printf("%s: removed %d\n", class, removed[class])
				}
				return err
			})
		},
	}
}

func cacheForgetCmd() *cobra.Command {
	var class string

	cmd := &cobra.Command{
		Use:   "forget [identifier]",
		Short: "Drop one cached artifact so the next collection refetches it",
		Long: `Drop one cached artifact. The identifier is the search query for
search_results and the competitor entry for competitor_profiles, as given in
the request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := storage.ParseClass(class)
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, store *cache.Store) error {
				return store.Forget(ctx, c, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&class, "class", string(storage.ClassCompetitorProfiles), "Record class: search_results or competitor_profiles")
	return cmd
}
