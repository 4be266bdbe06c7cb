package graph

import (
	"sort"

	"github.com/google/uuid"
)

// ComputeDelta computes the structural difference between a base and head snapshot.
// Nodes are diffed by key, edges by (from, to, type) triple and unresolved
// specifiers by (file, specifier) pair. Results are sorted.
func ComputeDelta(base, head *Snapshot) *Delta {
	delta := &Delta{
		ID:             uuid.New().String(),
		BaseSnapshotID: base.ID,
		HeadSnapshotID: head.ID,
	}

	// Node diff
	for key, node := range head.Nodes {
		if _, exists := base.Nodes[key]; !exists {
			delta.AddedNodes = append(delta.AddedNodes, *node)
		}
	}
	for key, node := range base.Nodes {
		if _, exists := head.Nodes[key]; !exists {
			delta.RemovedNodes = append(delta.RemovedNodes, *node)
		}
	}
	sort.Slice(delta.AddedNodes, func(i, j int) bool { return delta.AddedNodes[i].Key < delta.AddedNodes[j].Key })
	sort.Slice(delta.RemovedNodes, func(i, j int) bool { return delta.RemovedNodes[i].Key < delta.RemovedNodes[j].Key })

	// Edge diff using set operations on edge keys
	baseEdges := make(map[string]Edge, len(base.Edges))
	for _, e := range base.Edges {
		baseEdges[e.EdgeKey()] = e
	}
	headEdges := make(map[string]Edge, len(head.Edges))
	for _, e := range head.Edges {
		headEdges[e.EdgeKey()] = e
	}

	for key, edge := range headEdges {
		if _, exists := baseEdges[key]; !exists {
			delta.AddedEdges = append(delta.AddedEdges, edge)
		}
	}
	for key, edge := range baseEdges {
		if _, exists := headEdges[key]; !exists {
			delta.RemovedEdges = append(delta.RemovedEdges, edge)
		}
	}
	sortEdges(delta.AddedEdges)
	sortEdges(delta.RemovedEdges)

	// Unresolved specifier diff
	baseMissing := missingSet(base)
	headMissing := missingSet(head)
	for _, m := range head.Missing() {
		if !baseMissing[m] {
			delta.AddedMissing = append(delta.AddedMissing, m)
		}
	}
	for _, m := range base.Missing() {
		if !headMissing[m] {
			delta.FixedMissing = append(delta.FixedMissing, m)
		}
	}

	delta.Stats = DeltaStats{
		AddedNodeCount:    len(delta.AddedNodes),
		RemovedNodeCount:  len(delta.RemovedNodes),
		AddedEdgeCount:    len(delta.AddedEdges),
		RemovedEdgeCount:  len(delta.RemovedEdges),
		AddedMissingCount: len(delta.AddedMissing),
		FixedMissingCount: len(delta.FixedMissing),
	}

	return delta
}

func missingSet(s *Snapshot) map[Missing]bool {
	set := make(map[Missing]bool)
	for _, m := range s.Missing() {
		set[m] = true
	}
	return set
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].EdgeKey() < edges[j].EdgeKey() })
}
