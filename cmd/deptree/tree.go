package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deptree/deptree/pkg/graph"
	"github.com/deptree/deptree/pkg/surface"
)

func newTreeCmd() *cobra.Command {
	var opts treeOpts

	cmd := &cobra.Command{
		Use:   "tree <entry-file|snapshot.json>",
		Short: "Print the dependency tree of an entry file",
		Long: `Walks the imports of the entry file and prints them as a tree. With
--format json the nested tree object is printed instead. A saved snapshot
can be given in place of an entry file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.target = args[0]
			return runTree(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	opts.walk.register(cmd)

	return cmd
}

type treeOpts struct {
	target string
	format string
	walk   walkOpts
}

func runTree(ctx context.Context, out io.Writer, opts treeOpts) error {
	logger := newLogger()

	if isSnapshotFile(opts.target) {
		snap, err := graph.LoadSnapshot(opts.target)
		if err != nil {
			return err
		}
		return renderSnapshot(out, snap, opts.format)
	}

	res, err := walk(ctx, opts.target, opts.walk, logger)
	if err != nil {
		return err
	}
	switch opts.format {
	case "json":
		return surface.EncodeJSON(out, res.graph.Tree())
	case "text", "":
		return (&surface.TerminalRenderer{}).Render(out, res.graph.Snapshot())
	default:
		return fmt.Errorf("unknown format %q (want text or json)", opts.format)
	}
}

func renderSnapshot(out io.Writer, snap *graph.Snapshot, format string) error {
	var r surface.Renderer
	switch format {
	case "json":
		r = &surface.JSONRenderer{}
	case "list":
		r = &surface.ListRenderer{}
	case "text", "":
		r = &surface.TerminalRenderer{}
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return r.Render(out, snap)
}

func newListCmd() *cobra.Command {
	var opts listOpts

	cmd := &cobra.Command{
		Use:   "list <entry-file|snapshot.json>",
		Short: "Print every file the entry depends on, dependencies first",
		Long: `Prints one file per line in post order: every file appears after all of
its dependencies and the entry file comes last.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.target = args[0]
			return runList(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.relative, "relative", false, "Print paths relative to the resolution directory")
	opts.walk.register(cmd)

	return cmd
}

type listOpts struct {
	target   string
	relative bool
	walk     walkOpts
}

func runList(ctx context.Context, out io.Writer, opts listOpts) error {
	if isSnapshotFile(opts.target) {
		snap, err := graph.LoadSnapshot(opts.target)
		if err != nil {
			return err
		}
		return (&surface.ListRenderer{Relative: opts.relative}).Render(out, snap)
	}

	res, err := walk(ctx, opts.target, opts.walk, newLogger())
	if err != nil {
		return err
	}
	for _, f := range res.graph.List() {
		if opts.relative {
			if rel, err := filepath.Rel(res.project, f); err == nil {
				f = rel
			}
		}
		fmt.Fprintln(out, f)
	}
	return nil
}
