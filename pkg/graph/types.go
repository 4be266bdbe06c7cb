// Package graph defines the serializable form of a dependency walk: the
// files reached from an entry point, the import edges between them and the
// specifiers that did not resolve.
package graph

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Snapshot is a point-in-time view of the dependency graph of one entry
// file. Snapshots are immutable once created.
type Snapshot struct {
	ID          string              `json:"id"`
	Entry       string              `json:"entry"`
	Directory   string              `json:"directory"`
	Nodes       map[string]*Node    `json:"nodes"` // keyed by absolute path
	Edges       []Edge              `json:"edges"`
	NonExistent map[string][]string `json:"non_existent,omitempty"`
	Stats       SnapshotStats       `json:"stats"`
	ExtractedAt time.Time           `json:"extracted_at"`
}

// Node is a single file in the dependency graph.
type Node struct {
	Key        string `json:"key"`              // absolute path
	Format     string `json:"format,omitempty"` // module system: "commonjs", "es6", "sass", ...
	Leaf       bool   `json:"leaf,omitempty"`   // recorded but never expanded
	IsExternal bool   `json:"is_external"`      // lives under a node_modules directory
}

// Edge is an import of To by From.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"` // static, require, dynamic
}

// EdgeKey returns a stable string key for deduplication and set operations.
func (e Edge) EdgeKey() string {
	return e.From + "|" + e.To + "|" + e.Type
}

// Missing is one specifier that did not resolve.
type Missing struct {
	File      string `json:"file"`
	Specifier string `json:"specifier"`
}

// SnapshotStats holds summary statistics for a snapshot.
type SnapshotStats struct {
	NodeCount       int `json:"node_count"`
	EdgeCount       int `json:"edge_count"`
	DirectoryCount  int `json:"directory_count"`
	ExternalCount   int `json:"external_count"`
	UnresolvedCount int `json:"unresolved_count"`
	ExtractionMs    int `json:"extraction_ms"`
}

// Delta represents the structural difference between two snapshots.
// Deltas are immutable once computed.
type Delta struct {
	ID             string     `json:"id"`
	BaseSnapshotID string     `json:"base_snapshot_id"`
	HeadSnapshotID string     `json:"head_snapshot_id"`
	AddedNodes     []Node     `json:"added_nodes"`
	RemovedNodes   []Node     `json:"removed_nodes"`
	AddedEdges     []Edge     `json:"added_edges"`
	RemovedEdges   []Edge     `json:"removed_edges"`
	AddedMissing   []Missing  `json:"added_missing"`
	FixedMissing   []Missing  `json:"fixed_missing"`
	Stats          DeltaStats `json:"stats"`
}

// DeltaStats holds summary statistics for a delta.
type DeltaStats struct {
	AddedNodeCount    int `json:"added_node_count"`
	RemovedNodeCount  int `json:"removed_node_count"`
	AddedEdgeCount    int `json:"added_edge_count"`
	RemovedEdgeCount  int `json:"removed_edge_count"`
	AddedMissingCount int `json:"added_missing_count"`
	FixedMissingCount int `json:"fixed_missing_count"`
}

// IsExternalPath reports whether path lies inside a node_modules directory.
func IsExternalPath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "node_modules" {
			return true
		}
	}
	return false
}

// InDegreeMap maps node keys to their in-degree count.
type InDegreeMap map[string]int

// ComputeInDegrees calculates how many files import each node.
func (s *Snapshot) ComputeInDegrees() InDegreeMap {
	degrees := make(InDegreeMap, len(s.Nodes))
	for key := range s.Nodes {
		degrees[key] = 0
	}
	for _, edge := range s.Edges {
		degrees[edge.To]++
	}
	return degrees
}

// OutDegreeMap maps node keys to their out-degree count.
type OutDegreeMap map[string]int

// ComputeOutDegrees calculates how many files each node imports.
func (s *Snapshot) ComputeOutDegrees() OutDegreeMap {
	degrees := make(OutDegreeMap, len(s.Nodes))
	for key := range s.Nodes {
		degrees[key] = 0
	}
	for _, edge := range s.Edges {
		degrees[edge.From]++
	}
	return degrees
}

// Directories returns the set of directories containing snapshot files.
func (s *Snapshot) Directories() map[string]bool {
	dirs := make(map[string]bool)
	for key := range s.Nodes {
		dirs[filepath.Dir(key)] = true
	}
	return dirs
}

// Missing returns every unresolved specifier, ordered by file and then by
// order of appearance.
func (s *Snapshot) Missing() []Missing {
	files := make([]string, 0, len(s.NonExistent))
	for f := range s.NonExistent {
		files = append(files, f)
	}
	sort.Strings(files)
	var out []Missing
	for _, f := range files {
		for _, spec := range s.NonExistent[f] {
			out = append(out, Missing{File: f, Specifier: spec})
		}
	}
	return out
}

// ComputeStats recomputes the summary statistics, keeping ExtractionMs.
func (s *Snapshot) ComputeStats() {
	external := 0
	for _, n := range s.Nodes {
		if n.IsExternal {
			external++
		}
	}
	unresolved := 0
	for _, specs := range s.NonExistent {
		unresolved += len(specs)
	}
	s.Stats = SnapshotStats{
		NodeCount:       len(s.Nodes),
		EdgeCount:       len(s.Edges),
		DirectoryCount:  len(s.Directories()),
		ExternalCount:   external,
		UnresolvedCount: unresolved,
		ExtractionMs:    s.Stats.ExtractionMs,
	}
}
