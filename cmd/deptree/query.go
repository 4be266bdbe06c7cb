package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deptree/deptree/pkg/graph"
	"github.com/deptree/deptree/pkg/graphquery"
	"github.com/deptree/deptree/pkg/surface"
)

func newWhyCmd() *cobra.Command {
	var opts whyOpts

	cmd := &cobra.Command{
		Use:   "why <entry-file|snapshot.json> <file>",
		Short: "Show the shortest import chains from the entry to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.target = args[0]
			opts.file = args[1]
			return runWhy(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "Start of the chains (default: the entry file)")
	cmd.Flags().IntVar(&opts.maxPaths, "max-paths", 10, "Maximum number of chains to print")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the path result as JSON")
	opts.walk.register(cmd)

	return cmd
}

type whyOpts struct {
	target   string
	file     string
	from     string
	maxPaths int
	json     bool
	walk     walkOpts
}

func runWhy(ctx context.Context, out io.Writer, opts whyOpts) error {
	snap, err := loadOrWalk(ctx, opts.target, opts.walk, newLogger())
	if err != nil {
		return err
	}

	result := graphquery.FindPaths(snap, firstNonEmpty(opts.from, snap.Entry), opts.file, opts.maxPaths)
	if opts.json {
		return surface.EncodeJSON(out, result)
	}
	if len(result.Paths) == 0 {
		fmt.Fprintf(out, "%s is not reachable from %s\n", opts.file, relTo(snap, result.From))
		return nil
	}
	for i, p := range result.Paths {
		parts := make([]string, len(p))
		for j, f := range p {
			parts[j] = relTo(snap, f)
		}
		fmt.Fprintf(out, "%d. %s\n", i+1, strings.Join(parts, " -> "))
	}
	return nil
}

func newDependentsCmd() *cobra.Command {
	var opts dependentsOpts

	cmd := &cobra.Command{
		Use:   "dependents <entry-file|snapshot.json> <file>",
		Short: "List the files that import a file, directly or transitively",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.target = args[0]
			opts.file = args[1]
			return runDependents(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.depth, "depth", 0, "Only follow importers this many levels up (0 = unlimited)")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", 0, "Cap the result to the most connected files (0 = no cap)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the subgraph as JSON")
	opts.walk.register(cmd)

	return cmd
}

type dependentsOpts struct {
	target   string
	file     string
	depth    int
	maxNodes int
	json     bool
	walk     walkOpts
}

func runDependents(ctx context.Context, out io.Writer, opts dependentsOpts) error {
	snap, err := loadOrWalk(ctx, opts.target, opts.walk, newLogger())
	if err != nil {
		return err
	}

	var files []string
	if opts.depth > 0 || opts.json || opts.maxNodes > 0 {
		depth := opts.depth
		if depth <= 0 {
			depth = len(snap.Nodes)
		}
		ego := graphquery.EgoGraph(snap, opts.file, depth, "rdeps", len(snap.Nodes)+1)
		ego = graphquery.CapGraph(ego.Nodes, ego.Edges, opts.maxNodes)
		if opts.json {
			return surface.EncodeJSON(out, ego)
		}
		targets := make(map[string]bool)
		for _, t := range graphquery.MatchNodes(snap, opts.file) {
			targets[t] = true
		}
		for key := range ego.Nodes {
			if !targets[key] {
				files = append(files, key)
			}
		}
		sort.Strings(files)
	} else {
		files = graphquery.Dependents(snap, opts.file)
	}

	for _, f := range files {
		fmt.Fprintln(out, relTo(snap, f))
	}
	return nil
}

func newDirsCmd() *cobra.Command {
	var opts dirsOpts

	cmd := &cobra.Command{
		Use:   "dirs <entry-file|snapshot.json>",
		Short: "Aggregate the graph by directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.target = args[0]
			return runDirs(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.hideExternal, "hide-external", false, "Leave out node_modules directories")
	cmd.Flags().IntVar(&opts.minEdgeWeight, "min-edge-weight", 1, "Only show directory edges with at least this many imports")
	cmd.Flags().IntVar(&opts.maxDirs, "max-dirs", 0, "Cap the number of directories (0 = 500)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the directory graph as JSON")
	opts.walk.register(cmd)

	return cmd
}

type dirsOpts struct {
	target        string
	hideExternal  bool
	minEdgeWeight int
	maxDirs       int
	json          bool
	walk          walkOpts
}

func runDirs(ctx context.Context, out io.Writer, opts dirsOpts) error {
	snap, err := loadOrWalk(ctx, opts.target, opts.walk, newLogger())
	if err != nil {
		return err
	}

	result := graphquery.AggregateDirectories(snap, opts.hideExternal, opts.minEdgeWeight, opts.maxDirs)
	if opts.json {
		return surface.EncodeJSON(out, result)
	}

	dirs := make([]string, 0, len(result.Nodes))
	for d := range result.Nodes {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		n := result.Nodes[d]
		fmt.Fprintf(out, "%s (%d files)\n", relTo(snap, d), n.FileCount)
		for _, e := range result.Edges {
			if e.From == d {
				fmt.Fprintf(out, "  -> %s [%d]\n", relTo(snap, e.To), e.Weight)
			}
		}
	}
	return nil
}

// relTo shortens path relative to the snapshot directory.
func relTo(snap *graph.Snapshot, path string) string {
	if snap.Directory == "" {
		return path
	}
	rel, err := filepath.Rel(snap.Directory, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
