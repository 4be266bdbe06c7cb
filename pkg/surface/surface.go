// Package surface defines output rendering for dependency snapshots and
// deltas. Implementations handle different output targets: terminal,
// Markdown, JSON and flat lists.
package surface

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/deptree/deptree/pkg/graph"
)

// Renderer produces formatted output from a Snapshot.
type Renderer interface {
	// Render writes the formatted snapshot to the writer.
	Render(w io.Writer, snap *graph.Snapshot) error
}

// DeltaRenderer produces formatted output from a Delta.
type DeltaRenderer interface {
	RenderDelta(w io.Writer, delta *graph.Delta) error
}

// children returns each file's direct dependencies in import order.
func children(snap *graph.Snapshot) map[string][]string {
	out := make(map[string][]string)
	for _, e := range snap.Edges {
		out[e.From] = append(out[e.From], e.To)
	}
	return out
}

// relPath shortens path relative to dir when it lies inside it.
func relPath(dir, path string) string {
	if dir == "" {
		return path
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// PostOrder returns the snapshot's files with every file after its
// dependencies and the entry last. Files unreachable from the entry are
// omitted.
func PostOrder(snap *graph.Snapshot) []string {
	if _, ok := snap.Nodes[snap.Entry]; !ok {
		return []string{}
	}
	deps := children(snap)
	seen := make(map[string]bool, len(snap.Nodes))
	out := make([]string, 0, len(snap.Nodes))
	var visit func(id string)
	visit = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, d := range deps[id] {
			visit(d)
		}
		out = append(out, id)
	}
	visit(snap.Entry)
	return out
}
