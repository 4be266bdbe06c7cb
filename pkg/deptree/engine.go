// Package deptree computes the transitive file dependencies of an entry
// file across CommonJS, AMD, ES module, TypeScript and stylesheet sources.
//
// A walk reads each reachable file once, extracts its import specifiers,
// resolves them to absolute paths and follows every resolved, unfiltered
// path depth first. Cycles are recorded but not re-entered, specifiers that
// resolve to nothing are collected per file, and per-file failures never
// abort the walk.
package deptree

import (
	"log/slog"
	"time"

	"github.com/deptree/deptree/pkg/extract"
	"github.com/deptree/deptree/pkg/resolve"
)

type nodeState uint8

const (
	inProgress nodeState = iota + 1
	committed
)

type edge struct {
	to   string
	kind extract.Kind
}

// node is one file in the walk arena.
type node struct {
	id     string
	state  nodeState
	format extract.Format
	edges  []edge
	leaf   bool
	// seeded is set when the file's subtree came from Visited.
	seeded Tree
	cached bool
}

func (n *node) addEdge(to string, kind extract.Kind) {
	for _, e := range n.edges {
		if e.to == to {
			return
		}
	}
	n.edges = append(n.edges, edge{to: to, kind: kind})
}

type walker struct {
	opts     Options
	resolver *resolve.Resolver
	log      *slog.Logger
	nodes    map[string]*node
	order    []string
}

// Build walks the dependency graph of opts.Filename once. The returned
// Graph renders the tree, list and snapshot shapes without walking again.
// The only error is a *ConfigurationError.
func Build(opts Options) (*Graph, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	start := time.Now()

	w := &walker{
		opts:     o,
		resolver: resolve.New(o.FS, o.resolverConfig(), o.Logger),
		log:      o.Logger,
		nodes:    make(map[string]*node),
	}
	g := &Graph{
		Entry:       o.Filename,
		Directory:   o.Directory,
		nonExistent: o.NonExistent,
	}

	if w.fromCache(o.Filename) == nil {
		if !o.FS.Exists(o.Filename) {
			w.log.Debug("entry file does not exist", "file", o.Filename)
			return g, nil
		}
		if !w.visit(o.Filename) {
			return g, nil
		}
	}

	g.nodes = w.nodes
	g.order = w.order
	g.elapsed = time.Since(start)
	g.render()
	g.commit(o.Visited)
	w.log.Debug("walk complete", "entry", o.Filename, "files", len(g.nodes), "elapsed", g.elapsed)
	return g, nil
}

// BuildTree returns the nested dependency tree of opts.Filename, or an
// empty Tree when the entry file does not exist.
func BuildTree(opts Options) (Tree, error) {
	g, err := Build(opts)
	if err != nil {
		return nil, err
	}
	return g.Tree(), nil
}

// BuildList returns every file in the dependency graph of opts.Filename
// exactly once, dependencies before the files that import them and the
// entry file last.
func BuildList(opts Options) ([]string, error) {
	g, err := Build(opts)
	if err != nil {
		return nil, err
	}
	return g.List(), nil
}

// fromCache adds a committed node for id when Visited already holds its
// subtree.
func (w *walker) fromCache(id string) *node {
	subtree, ok := w.opts.Visited.Get(id)
	if !ok {
		return nil
	}
	n := &node{id: id, state: committed, seeded: subtree, cached: true}
	w.add(n)
	return n
}

func (w *walker) add(n *node) {
	w.nodes[n.id] = n
	w.order = append(w.order, n.id)
}

// visit expands id depth first. It reports whether the file could be read;
// an unreadable file is still committed, with no dependencies.
func (w *walker) visit(id string) bool {
	n := &node{id: id, state: inProgress}
	w.add(n)
	defer func() { n.state = committed }()

	src, err := w.opts.FS.ReadFile(id)
	if err != nil {
		w.log.Debug("unreadable file", "file", id, "err", err)
		return false
	}

	format, imports, err := extract.Analyze(id, src, w.opts.Extractor)
	n.format = format
	if err != nil {
		w.log.Warn("extraction failed", "file", id, "err", err)
		return true
	}

	var missing []string
	for _, imp := range imports {
		if imp.Kind == extract.KindDynamic && !w.opts.IncludeDynamicImports {
			continue
		}
		res := w.resolver.Resolve(imp.Specifier, id, format)
		switch res.Status {
		case resolve.Excluded:
			continue
		case resolve.NotFound:
			w.log.Debug("unresolved specifier", "file", id, "specifier", imp.Specifier)
			missing = append(missing, imp.Specifier)
			continue
		}
		if !w.opts.keep(res.Path, id) {
			continue
		}

		n.addEdge(res.Path, imp.Kind)
		if dep, seen := w.nodes[res.Path]; seen {
			if dep.state == inProgress {
				w.log.Debug("cycle", "file", id, "dependency", res.Path)
			}
			continue
		}
		if w.fromCache(res.Path) != nil {
			continue
		}
		if res.Leaf {
			w.add(&node{id: res.Path, state: committed, leaf: true})
			continue
		}
		w.visit(res.Path)
	}

	w.opts.NonExistent.Add(id, missing...)
	return true
}
