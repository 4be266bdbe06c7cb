package deptree

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/deptree/deptree/pkg/extract"
	"github.com/deptree/deptree/pkg/graph"
)

// Graph is the result of one walk: an arena of files keyed by absolute
// path, each holding its ordered direct dependencies.
type Graph struct {
	Entry     string
	Directory string

	nodes       map[string]*node
	order       []string
	nonExistent *NonExistent
	elapsed     time.Duration

	tree     Tree
	subtrees map[string]Tree
	complete map[string]bool
}

// Empty reports whether the walk found no entry file.
func (g *Graph) Empty() bool { return len(g.nodes) == 0 }

// Files returns every file in discovery order, entry first.
func (g *Graph) Files() []string {
	return append([]string(nil), g.order...)
}

// Dependencies returns the direct dependencies of file in import order.
// For a file whose subtree came from the cache, they are the cached
// subtree's keys in sorted order.
func (g *Graph) Dependencies(file string) []string {
	n, ok := g.nodes[file]
	if !ok {
		return nil
	}
	if n.cached {
		return sortedKeys(n.seeded)
	}
	deps := make([]string, 0, len(n.edges))
	for _, e := range n.edges {
		deps = append(deps, e.to)
	}
	return deps
}

// NonExistent returns the unresolved specifiers of every file in the graph.
func (g *Graph) NonExistent() map[string][]string {
	out := make(map[string][]string)
	for _, id := range g.order {
		if specs := g.nonExistent.Get(id); len(specs) > 0 {
			out[id] = specs
		}
	}
	return out
}

// Tree returns the nested dependency tree, {} when the graph is empty.
func (g *Graph) Tree() Tree {
	if g.Empty() {
		return Tree{}
	}
	return g.tree
}

// render builds the tree once. Subtrees are memoized per file so a file
// reached through several parents shares one Tree value, and a file already
// on the render stack is emitted as an empty leaf.
//
// A subtree that cut off one of its ancestors that way depends on where it
// was rendered from, so only files whose subtree cut nothing but the file
// itself are marked complete and later committed.
func (g *Graph) render() {
	if g.Empty() {
		return
	}
	g.subtrees = make(map[string]Tree, len(g.nodes))
	g.complete = make(map[string]bool, len(g.nodes))
	onStack := make(map[string]bool)
	// cuts holds, per rendered file, the ancestors its subtree emitted as
	// empty leaves. The "" marker means the subtree reuses a cut whose
	// ancestor is no longer on the stack, which no caller can clear.
	cuts := make(map[string]map[string]bool)

	var subtree func(id string) (Tree, map[string]bool)
	subtree = func(id string) (Tree, map[string]bool) {
		if t, ok := g.subtrees[id]; ok {
			c := cuts[id]
			for a := range c {
				if !onStack[a] {
					return t, map[string]bool{"": true}
				}
			}
			return t, c
		}
		n := g.nodes[id]
		if n.cached {
			return n.seeded, nil
		}
		onStack[id] = true
		t := make(Tree, len(n.edges))
		var cut map[string]bool
		addCut := func(a string) {
			if cut == nil {
				cut = make(map[string]bool)
			}
			cut[a] = true
		}
		for _, e := range n.edges {
			if onStack[e.to] {
				t[e.to] = Tree{}
				addCut(e.to)
				continue
			}
			sub, c := subtree(e.to)
			t[e.to] = sub
			for a := range c {
				addCut(a)
			}
		}
		delete(onStack, id)
		delete(cut, id)
		g.subtrees[id] = t
		cuts[id] = cut
		g.complete[id] = len(cut) == 0
		return t, cut
	}
	root, _ := subtree(g.Entry)
	g.tree = Tree{g.Entry: root}
}

// commit stores every complete subtree in the cache.
func (g *Graph) commit(v *Visited) {
	for id, t := range g.subtrees {
		if g.complete[id] {
			v.commit(id, t)
		}
	}
}

// List flattens the graph in post order: each file appears once, after all
// of its dependencies, and the entry file comes last. Cached subtrees are
// flattened in sorted key order.
func (g *Graph) List() []string {
	if g.Empty() {
		return []string{}
	}
	seen := make(map[string]bool, len(g.nodes))
	out := make([]string, 0, len(g.nodes))

	var flattenCached func(t Tree)
	flattenCached = func(t Tree) {
		for _, k := range sortedKeys(t) {
			if seen[k] {
				continue
			}
			seen[k] = true
			flattenCached(t[k])
			out = append(out, k)
		}
	}

	var visit func(id string)
	visit = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		n := g.nodes[id]
		if n.cached {
			flattenCached(n.seeded)
		} else {
			for _, e := range n.edges {
				visit(e.to)
			}
		}
		out = append(out, id)
	}
	visit(g.Entry)
	return out
}

// Snapshot converts the graph into its serializable form.
func (g *Graph) Snapshot() *graph.Snapshot {
	snap := &graph.Snapshot{
		ID:          uuid.New().String(),
		Entry:       g.Entry,
		Directory:   g.Directory,
		Nodes:       make(map[string]*graph.Node, len(g.nodes)),
		NonExistent: g.NonExistent(),
		ExtractedAt: time.Now().UTC(),
	}
	snap.Stats.ExtractionMs = int(g.elapsed.Milliseconds())

	addNode := func(id string, format extract.Format, leaf bool) {
		if _, ok := snap.Nodes[id]; ok {
			return
		}
		snap.Nodes[id] = &graph.Node{
			Key:        id,
			Format:     string(format),
			Leaf:       leaf,
			IsExternal: graph.IsExternalPath(id),
		}
	}

	seenEdge := make(map[string]bool)
	addEdge := func(e graph.Edge) {
		if k := e.EdgeKey(); !seenEdge[k] {
			seenEdge[k] = true
			snap.Edges = append(snap.Edges, e)
		}
	}

	var addCached func(from string, t Tree)
	addCached = func(from string, t Tree) {
		for _, k := range sortedKeys(t) {
			_, known := snap.Nodes[k]
			addNode(k, extract.FormatUnknown, false)
			addEdge(graph.Edge{From: from, To: k, Type: "cached"})
			if !known {
				addCached(k, t[k])
			}
		}
	}

	for _, id := range g.order {
		n := g.nodes[id]
		addNode(id, n.format, n.leaf)
	}
	for _, id := range g.order {
		n := g.nodes[id]
		if n.cached {
			addCached(id, n.seeded)
			continue
		}
		for _, e := range n.edges {
			addEdge(graph.Edge{From: id, To: e.to, Type: e.kind.String()})
		}
	}
	snap.ComputeStats()
	return snap
}

func sortedKeys(t Tree) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
