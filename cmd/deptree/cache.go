package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/deptree/deptree/internal/cachestore"
	"github.com/deptree/deptree/pkg/config"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent visited cache",
	}
	cmd.AddCommand(newCacheStatsCmd(), newCacheClearCmd())
	return cmd
}

type cacheOpts struct {
	project     string
	databaseURL string
}

func (o *cacheOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.project, "project", "", "Project directory (default: detect project root)")
	cmd.Flags().StringVar(&o.databaseURL, "database-url", "", "Postgres URL (default from config or "+config.EnvDatabaseURL+")")
}

func newCacheStatsCmd() *cobra.Command {
	var opts cacheOpts
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how many subtrees are cached for the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheStats(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	var opts cacheOpts
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached subtree of the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(cmd.Context(), opts)
		},
	}
	opts.register(cmd)
	return cmd
}

// openCache connects to the project's cache database.
func openCache(ctx context.Context, opts cacheOpts) (*cachestore.Store, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("getting working directory: %w", err)
	}
	project, err := resolveProject(cwd, opts.project)
	if err != nil {
		return nil, "", err
	}
	cfg := loadConfig(project)
	dbURL := firstNonEmpty(opts.databaseURL, cfg.Cache.DatabaseURL)
	if dbURL == "" {
		return nil, "", fmt.Errorf("no cache database configured (set --database-url or %s)", config.EnvDatabaseURL)
	}
	store, err := cachestore.Open(ctx, dbURL, config.ProjectSlug(project), newLogger())
	if err != nil {
		return nil, "", err
	}
	return store, project, nil
}

func runCacheStats(ctx context.Context, out io.Writer, opts cacheOpts) error {
	store, project, err := openCache(ctx, opts)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Entries(ctx, "")
	if err != nil {
		return err
	}
	optionSets := make(map[string]bool)
	for _, e := range entries {
		optionSets[e.Options] = true
	}
	fmt.Fprintf(out, "Project: %s\n", project)
	fmt.Fprintf(out, "Entries: %d\n", len(entries))
	fmt.Fprintf(out, "Option sets: %d\n", len(optionSets))
	if len(entries) > 0 {
		oldest := entries[0].BuiltAt
		for _, e := range entries[1:] {
			if e.BuiltAt.Before(oldest) {
				oldest = e.BuiltAt
			}
		}
		fmt.Fprintf(out, "Oldest:  %s\n", oldest.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runCacheClear(ctx context.Context, opts cacheOpts) error {
	store, project, err := openCache(ctx, opts)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Purge(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Cleared visited cache for %s\n", project)
	return nil
}
