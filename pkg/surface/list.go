package surface

import (
	"fmt"
	"io"

	"github.com/deptree/deptree/pkg/graph"
)

// ListRenderer prints one file per line in dependency order.
type ListRenderer struct {
	// Relative prints paths relative to the snapshot directory.
	Relative bool
}

func (r *ListRenderer) Render(w io.Writer, snap *graph.Snapshot) error {
	for _, f := range PostOrder(snap) {
		if r.Relative {
			f = relPath(snap.Directory, f)
		}
		if _, err := fmt.Fprintln(w, f); err != nil {
			return err
		}
	}
	return nil
}
