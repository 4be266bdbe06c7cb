package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/deptree/deptree/internal/storage"
	"github.com/deptree/deptree/pkg/config"
	"github.com/deptree/deptree/pkg/graph"
	"github.com/deptree/deptree/pkg/surface"
)

func newDiffCmd() *cobra.Command {
	var opts diffOpts

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare two snapshots and compute a structural delta",
		Long: `Computes the files, imports and unresolved specifiers added and removed
between two dependency graphs. Each side is a snapshot file, a stored
snapshot ID, or an entry file that is walked on the spot.

With --load, a delta stored earlier with --save is rendered instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.base, "base", "", "Base snapshot: file, stored ID or entry file")
	cmd.Flags().StringVar(&opts.head, "head", "", "Head snapshot: file, stored ID or entry file")
	cmd.Flags().StringVar(&opts.load, "load", "", "Render the stored delta with this ID instead of computing one")
	cmd.Flags().StringVar(&opts.project, "project", "", "Project directory for stored snapshot IDs (default: detect project root)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json or markdown")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Store the delta in the storage backend")
	cmd.Flags().BoolVar(&opts.failOnMissing, "fail-on-unresolved", false, "Exit non-zero when the head adds unresolved imports")
	cmd.MarkFlagsMutuallyExclusive("load", "base")
	cmd.MarkFlagsMutuallyExclusive("load", "head")
	cmd.MarkFlagsMutuallyExclusive("load", "save")
	opts.walk.register(cmd)

	return cmd
}

type diffOpts struct {
	base          string
	head          string
	load          string
	project       string
	format        string
	save          bool
	failOnMissing bool
	walk          walkOpts
}

func runDiff(ctx context.Context, out io.Writer, opts diffOpts) error {
	if opts.load == "" && (opts.base == "" || opts.head == "") {
		return fmt.Errorf("--base and --head are required unless --load is given")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	project, err := resolveProject(cwd, firstNonEmpty(opts.project, opts.walk.directory))
	if err != nil {
		return err
	}
	cfg := loadConfig(project)

	var client storage.StorageClient
	store := func() (storage.StorageClient, error) {
		if client != nil {
			return client, nil
		}
		c, err := openStorage(ctx, project, cfg, "", "")
		if err != nil {
			return nil, err
		}
		client = c
		return client, nil
	}

	var delta *graph.Delta
	if opts.load != "" {
		c, err := store()
		if err != nil {
			return err
		}
		if delta, err = storage.LoadDelta(ctx, c, config.ProjectSlug(project), opts.load); err != nil {
			return fmt.Errorf("loading delta %s: %w", opts.load, err)
		}
	} else {
		baseSnap, err := resolveSnapshot(ctx, opts.base, project, store, opts.walk)
		if err != nil {
			return fmt.Errorf("loading base snapshot: %w", err)
		}
		headSnap, err := resolveSnapshot(ctx, opts.head, project, store, opts.walk)
		if err != nil {
			return fmt.Errorf("loading head snapshot: %w", err)
		}
		delta = graph.ComputeDelta(baseSnap, headSnap)
	}

	var r surface.DeltaRenderer
	switch opts.format {
	case "json":
		r = &surface.JSONRenderer{}
	case "markdown", "md":
		r = &surface.MarkdownRenderer{}
	case "text", "":
		r = &surface.TerminalRenderer{}
	default:
		return fmt.Errorf("unknown format %q (want text, json or markdown)", opts.format)
	}
	if err := r.RenderDelta(out, delta); err != nil {
		return err
	}

	if opts.save && opts.load == "" {
		c, err := store()
		if err != nil {
			return err
		}
		if err := storage.SaveDelta(ctx, c, config.ProjectSlug(project), delta); err != nil {
			return fmt.Errorf("saving delta: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Delta %s saved\n", delta.ID)
	}

	if opts.failOnMissing && delta.Stats.AddedMissingCount > 0 {
		return fmt.Errorf("%d new unresolved imports", delta.Stats.AddedMissingCount)
	}
	return nil
}

// resolveSnapshot loads ref as a snapshot file, walks it as an entry file,
// or fetches it from storage by ID, in that order.
func resolveSnapshot(ctx context.Context, ref, project string, store func() (storage.StorageClient, error), o walkOpts) (*graph.Snapshot, error) {
	if fi, err := os.Stat(ref); err == nil && !fi.IsDir() {
		if isSnapshotFile(ref) {
			return graph.LoadSnapshot(ref)
		}
		o.directory = firstNonEmpty(o.directory, project)
		res, err := walk(ctx, ref, o, newLogger())
		if err != nil {
			return nil, err
		}
		return res.graph.Snapshot(), nil
	}
	c, err := store()
	if err != nil {
		return nil, err
	}
	return storage.LoadSnapshot(ctx, c, config.ProjectSlug(project), ref)
}
