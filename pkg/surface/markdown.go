package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/deptree/deptree/pkg/graph"
)

// MarkdownRenderer produces a Markdown summary of a Delta, suitable for a
// pull request comment.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) RenderDelta(w io.Writer, delta *graph.Delta) error {
	_, err := io.WriteString(w, BuildMarkdownSummary(delta))
	return err
}

// Conclusion maps a delta to a check outcome: failure when the head
// introduced unresolved imports, neutral when the graph changed, success
// otherwise.
func Conclusion(delta *graph.Delta) string {
	s := delta.Stats
	switch {
	case s.AddedMissingCount > 0:
		return "failure"
	case s.AddedNodeCount+s.RemovedNodeCount+s.AddedEdgeCount+s.RemovedEdgeCount > 0:
		return "neutral"
	default:
		return "success"
	}
}

// BuildMarkdownSummary renders the delta stats table followed by at most
// ten entries per section.
func BuildMarkdownSummary(delta *graph.Delta) string {
	var sb strings.Builder
	s := delta.Stats

	sb.WriteString(fmt.Sprintf("## Dependency changes: %s\n\n", Conclusion(delta)))

	sb.WriteString("### Delta Stats\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Added Files | %d |\n", s.AddedNodeCount))
	sb.WriteString(fmt.Sprintf("| Removed Files | %d |\n", s.RemovedNodeCount))
	sb.WriteString(fmt.Sprintf("| Added Imports | %d |\n", s.AddedEdgeCount))
	sb.WriteString(fmt.Sprintf("| Removed Imports | %d |\n", s.RemovedEdgeCount))
	sb.WriteString(fmt.Sprintf("| New Unresolved | %d |\n", s.AddedMissingCount))
	sb.WriteString(fmt.Sprintf("| Fixed Unresolved | %d |\n", s.FixedMissingCount))
	sb.WriteString("\n")

	var lines []string
	for _, m := range delta.AddedMissing {
		lines = append(lines, fmt.Sprintf("- :red_circle: `%s` in `%s`", m.Specifier, m.File))
	}
	for _, m := range delta.FixedMissing {
		lines = append(lines, fmt.Sprintf("- :green_circle: `%s` in `%s`", m.Specifier, m.File))
	}
	writeSection(&sb, "Unresolved", lines)

	lines = nil
	for _, n := range delta.AddedNodes {
		lines = append(lines, fmt.Sprintf("- added `%s`", n.Key))
	}
	for _, n := range delta.RemovedNodes {
		lines = append(lines, fmt.Sprintf("- removed `%s`", n.Key))
	}
	writeSection(&sb, "Files", lines)

	lines = nil
	for _, e := range delta.AddedEdges {
		lines = append(lines, fmt.Sprintf("- `%s` → `%s`", e.From, e.To))
	}
	writeSection(&sb, "New Imports", lines)

	return sb.String()
}

func writeSection(sb *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("### %s\n\n", title))
	for i, line := range lines {
		if i == 10 {
			sb.WriteString(fmt.Sprintf("_... and %d more_\n", len(lines)-10))
			break
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
}
