package deptree

import (
	"sort"
	"sync"
)

// Tree is the nested dependency shape: each key is an absolute file path
// and its value is that file's own dependency tree. A file reached through
// several parents maps to the same Tree value under each of them. Trees
// returned by this package are shared and must not be modified.
type Tree map[string]Tree

// Visited is the memoization cache of committed subtrees, keyed by
// absolute path. It can be seeded before a walk and shared across walks;
// a file with an entry is never read or expanded again.
type Visited struct {
	mu      sync.Mutex
	entries map[string]Tree
	// added marks entries committed by a walk rather than seeded.
	added map[string]bool
}

// NewVisited returns an empty cache.
func NewVisited() *Visited {
	return &Visited{entries: make(map[string]Tree), added: make(map[string]bool)}
}

// Seed records subtree as the known dependencies of file. A nil subtree
// means the file has no dependencies.
func (v *Visited) Seed(file string, subtree Tree) {
	if subtree == nil {
		subtree = Tree{}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[file] = subtree
	delete(v.added, file)
}

// SeedList records deps as the flat dependency list of file.
func (v *Visited) SeedList(file string, deps []string) {
	subtree := make(Tree, len(deps))
	for _, d := range deps {
		subtree[d] = Tree{}
	}
	v.Seed(file, subtree)
}

// Get returns the cached subtree of file.
func (v *Visited) Get(file string) (Tree, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.entries[file]
	return t, ok
}

// Len returns the number of cached files.
func (v *Visited) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Files returns the cached file paths in sorted order.
func (v *Visited) Files() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	files := make([]string, 0, len(v.entries))
	for f := range v.entries {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Committed returns, in sorted order, the files whose entries were added
// by walks rather than seeded.
func (v *Visited) Committed() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	files := make([]string, 0, len(v.added))
	for f := range v.added {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// commit stores subtree for file unless an entry already exists.
func (v *Visited) commit(file string, subtree Tree) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.entries[file]; !ok {
		v.entries[file] = subtree
		v.added[file] = true
	}
}

// NonExistent collects, per file, the raw specifiers that did not resolve,
// in order of appearance. It only ever grows.
type NonExistent struct {
	mu    sync.Mutex
	files map[string][]string
}

// NewNonExistent returns an empty collector.
func NewNonExistent() *NonExistent {
	return &NonExistent{files: make(map[string][]string)}
}

// Add appends specs to the entry of file, skipping specifiers already
// recorded for it.
func (n *NonExistent) Add(file string, specs ...string) {
	if len(specs) == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	existing := n.files[file]
	seen := make(map[string]bool, len(existing)+len(specs))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range specs {
		if !seen[s] {
			seen[s] = true
			existing = append(existing, s)
		}
	}
	n.files[file] = existing
}

// Get returns a copy of the unresolved specifiers of file.
func (n *NonExistent) Get(file string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.files[file]...)
}

// Len returns the number of files with unresolved specifiers.
func (n *NonExistent) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.files)
}

// Map returns a copy of every entry.
func (n *NonExistent) Map() map[string][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string][]string, len(n.files))
	for f, specs := range n.files {
		out[f] = append([]string(nil), specs...)
	}
	return out
}
