package surface

import (
	"fmt"
	"io"
	"os"

	"github.com/deptree/deptree/pkg/graph"
	"github.com/deptree/deptree/pkg/graphquery"
)

// TerminalRenderer renders snapshots as an indented tree and deltas as a
// change summary, with color unless NO_COLOR is set.
type TerminalRenderer struct {
	// MaxItems caps each delta section (0 = 20).
	MaxItems int
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, snap *graph.Snapshot) error {
	if _, ok := snap.Nodes[snap.Entry]; !ok {
		fmt.Fprintf(w, "%s\n", bold("No dependency tree: entry file not found."))
		return nil
	}

	deps := children(snap)
	printed := map[string]bool{snap.Entry: true}
	onPath := map[string]bool{snap.Entry: true}

	fmt.Fprintf(w, "%s\n", bold(relPath(snap.Directory, snap.Entry)))

	var walk func(id, prefix string)
	walk = func(id, prefix string) {
		kids := deps[id]
		for i, k := range kids {
			branch, next := "├── ", "│   "
			if i == len(kids)-1 {
				branch, next = "└── ", "    "
			}
			label := relPath(snap.Directory, k)
			if n := snap.Nodes[k]; n != nil && n.IsExternal {
				label = dim(label)
			}
			switch {
			case onPath[k]:
				label += " " + colored("(cycle)", colorYellow)
			case printed[k] && len(deps[k]) > 0:
				label += " " + dim("(repeated)")
			}
			fmt.Fprintf(w, "%s%s%s\n", prefix, branch, label)

			if onPath[k] || printed[k] {
				continue
			}
			printed[k] = true
			onPath[k] = true
			walk(k, prefix+next)
			delete(onPath, k)
		}
	}
	walk(snap.Entry, "")
	fmt.Fprintln(w)

	s := snap.Stats
	fmt.Fprintf(w, "Analyzed: %d files / %d imports / %d directories / %d external\n",
		s.NodeCount, s.EdgeCount, s.DirectoryCount, s.ExternalCount)

	if spots := graphquery.Hotspots(snap, 5, 2); len(spots) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Most imported:"))
		for _, hs := range spots {
			fmt.Fprintf(w, "  %s %s %s\n",
				colored("●", colorYellow), relPath(snap.Directory, hs.Key),
				dim(fmt.Sprintf("(%d importers)", hs.InDegree)))
		}
	}

	missing := snap.Missing()
	if len(missing) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", bold(fmt.Sprintf("Unresolved (%d):", len(missing))))
	for _, m := range missing {
		fmt.Fprintf(w, "  %s %s %s\n",
			colored("●", colorRed), relPath(snap.Directory, m.File), dim(m.Specifier))
	}
	return nil
}

func (r *TerminalRenderer) RenderDelta(w io.Writer, delta *graph.Delta) error {
	s := delta.Stats
	fmt.Fprintf(w, "%s\n\n", bold("Dependency changes"))
	fmt.Fprintf(w, "Analyzed: %d added files / %d removed files / %d added imports / %d removed imports\n\n",
		s.AddedNodeCount, s.RemovedNodeCount, s.AddedEdgeCount, s.RemovedEdgeCount)

	var nodes, edges, missing []string
	if s.AddedNodeCount+s.RemovedNodeCount+s.AddedEdgeCount+s.RemovedEdgeCount+
		s.AddedMissingCount+s.FixedMissingCount == 0 {
		fmt.Fprintln(w, "No changes.")
		return nil
	}

	for _, n := range delta.AddedNodes {
		nodes = append(nodes, colored("+ ", colorGreen)+n.Key)
	}
	for _, n := range delta.RemovedNodes {
		nodes = append(nodes, colored("- ", colorRed)+n.Key)
	}
	r.section(w, "Files:", nodes)

	for _, e := range delta.AddedEdges {
		edges = append(edges, colored("+ ", colorGreen)+e.From+" -> "+e.To)
	}
	for _, e := range delta.RemovedEdges {
		edges = append(edges, colored("- ", colorRed)+e.From+" -> "+e.To)
	}
	r.section(w, "Imports:", edges)

	for _, m := range delta.AddedMissing {
		missing = append(missing, colored("● ", colorRed)+m.File+" "+dim(m.Specifier))
	}
	for _, m := range delta.FixedMissing {
		missing = append(missing, colored("✓ ", colorGreen)+m.File+" "+dim(m.Specifier))
	}
	r.section(w, "Unresolved:", missing)
	return nil
}

func (r *TerminalRenderer) section(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	max := r.MaxItems
	if max <= 0 {
		max = 20
	}
	fmt.Fprintln(w, title)
	for i, line := range lines {
		if i == max {
			fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("... and %d more", len(lines)-max)))
			break
		}
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintln(w)
}
