package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/deptree/deptree/internal/cachestore"
	"github.com/deptree/deptree/pkg/config"
	"github.com/deptree/deptree/pkg/deptree"
	"github.com/deptree/deptree/pkg/fsutil"
	"github.com/deptree/deptree/pkg/graph"
)

// walkOpts are the flags shared by every command that walks an entry file.
type walkOpts struct {
	directory          string
	requireConfig      string
	aliasConfig        string
	tsConfig           string
	entryField         string
	exclude            []string
	excludeNodeModules bool
	includeDynamic     bool
	databaseURL        string
	noCache            bool
}

func (o *walkOpts) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.directory, "directory", "d", "", "Resolution base directory (default: detect project root)")
	f.StringVar(&o.requireConfig, "require-config", "", "RequireJS configuration file")
	f.StringVar(&o.aliasConfig, "alias-config", "", "Bundler alias configuration (YAML, JSON or webpack config)")
	f.StringVar(&o.tsConfig, "tsconfig", "", "tsconfig.json for path mapping")
	f.StringVar(&o.entryField, "entry-field", "", "package.json entry field: main, module or browser")
	f.StringSliceVar(&o.exclude, "exclude", nil, "Glob patterns of files to leave out")
	f.BoolVar(&o.excludeNodeModules, "exclude-node-modules", false, "Leave out files under node_modules")
	f.BoolVar(&o.includeDynamic, "include-dynamic", false, "Follow dynamic import() expressions")
	f.StringVar(&o.databaseURL, "database-url", "", "Postgres URL for the persistent visited cache")
	f.BoolVar(&o.noCache, "no-cache", false, "Ignore the persistent visited cache")
}

// walkResult is one walk together with the project it ran in.
type walkResult struct {
	graph   *deptree.Graph
	project string
	cfg     *config.Config
}

// resolveProject picks the resolution directory: the explicit directory,
// else the nearest project root above start, else start itself.
func resolveProject(start, directory string) (string, error) {
	if directory != "" {
		abs, err := filepath.Abs(directory)
		if err != nil {
			return "", fmt.Errorf("resolving directory: %w", err)
		}
		return abs, nil
	}
	if root, err := config.FindProjectRoot(start); err == nil {
		return root, nil
	}
	return start, nil
}

func loadConfig(projectRoot string) *config.Config {
	cfg := config.DefaultConfig()
	if cfgFile := config.FindConfigFile(projectRoot); cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		} else {
			cfg = loaded
		}
	}
	cfg.ApplyEnv()
	cfg.Resolve(projectRoot)
	return cfg
}

// options merges flags over the project config.
func (o walkOpts) options(entry, project string, cfg *config.Config, logger *slog.Logger) deptree.Options {
	return deptree.Options{
		Filename:              entry,
		Directory:             project,
		Exclude:               append(append([]string(nil), cfg.Filter.Exclude...), o.exclude...),
		ExcludeNodeModules:    o.excludeNodeModules || cfg.Filter.ExcludeNodeModules,
		Extractor:             cfg.Extraction,
		RequireConfig:         firstNonEmpty(absOrEmpty(o.requireConfig), cfg.Resolution.RequireConfig),
		AliasConfig:           firstNonEmpty(absOrEmpty(o.aliasConfig), cfg.Resolution.AliasConfig),
		TSConfig:              firstNonEmpty(absOrEmpty(o.tsConfig), cfg.Resolution.TSConfig),
		NodeModulesEntryField: firstNonEmpty(o.entryField, cfg.Resolution.NodeModulesEntryField),
		IncludeDynamicImports: o.includeDynamic || cfg.Resolution.IncludeDynamicImports,
		FS:                    fsutil.NewOS(cfg.Cache.Size),
		Logger:                logger,
	}
}

// walk builds the dependency graph of entry. When a database is configured
// the visited cache built with the same options is loaded before the walk
// and the subtrees the walk added are saved after it.
func walk(ctx context.Context, entry string, o walkOpts, logger *slog.Logger) (*walkResult, error) {
	abs, err := filepath.Abs(entry)
	if err != nil {
		return nil, fmt.Errorf("resolving entry: %w", err)
	}
	project, err := resolveProject(filepath.Dir(abs), o.directory)
	if err != nil {
		return nil, err
	}
	cfg := loadConfig(project)
	opts := o.options(abs, project, cfg, logger)
	fingerprint := opts.Fingerprint()

	var store *cachestore.Store
	if dbURL := firstNonEmpty(o.databaseURL, cfg.Cache.DatabaseURL); dbURL != "" && !o.noCache {
		store, err = cachestore.Open(ctx, dbURL, config.ProjectSlug(project), logger)
		if err != nil {
			logger.Warn("visited cache unavailable", "err", err)
			store = nil
		} else {
			defer store.Close()
			visited, stale, err := store.Load(ctx, fingerprint)
			if err != nil {
				logger.Warn("loading visited cache", "err", err)
				visited = deptree.NewVisited()
			}
			logger.Debug("visited cache", "options", fingerprint, "entries", visited.Len(), "stale", stale)
			opts.Visited = visited
		}
	}

	started := time.Now()
	g, err := deptree.Build(opts)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.Save(ctx, fingerprint, opts.Visited, started); err != nil {
			logger.Warn("saving visited cache", "err", err)
		}
	}
	return &walkResult{graph: g, project: project, cfg: cfg}, nil
}

// isSnapshotFile reports whether arg names a saved snapshot rather than an
// entry file. A .json entry file that is not a snapshot is walked.
func isSnapshotFile(arg string) bool {
	data, err := os.ReadFile(arg)
	if err != nil {
		return false
	}
	return graph.IsSnapshot(data)
}

// loadOrWalk returns the snapshot stored at arg, or walks arg as an entry
// file and snapshots the result.
func loadOrWalk(ctx context.Context, arg string, o walkOpts, logger *slog.Logger) (*graph.Snapshot, error) {
	if isSnapshotFile(arg) {
		return graph.LoadSnapshot(arg)
	}
	res, err := walk(ctx, arg, o, logger)
	if err != nil {
		return nil, err
	}
	return res.graph.Snapshot(), nil
}

func absOrEmpty(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
