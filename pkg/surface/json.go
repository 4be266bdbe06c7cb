package surface

import (
	"encoding/json"
	"io"

	"github.com/deptree/deptree/pkg/graph"
)

// JSONRenderer marshals snapshots and deltas to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, snap *graph.Snapshot) error {
	return encode(w, snap)
}

func (r *JSONRenderer) RenderDelta(w io.Writer, delta *graph.Delta) error {
	return encode(w, delta)
}

// EncodeJSON writes any value as indented JSON.
func EncodeJSON(w io.Writer, v any) error {
	return encode(w, v)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
