// Package graphquery provides graph algorithms for querying dependency
// snapshots: neighborhoods, shortest import paths and directory-level
// aggregation.
package graphquery

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/deptree/deptree/pkg/graph"
)

// DirNode represents an aggregated directory in the directory-level graph.
type DirNode struct {
	Dir        string   `json:"dir"`
	FileCount  int      `json:"file_count"`
	Formats    []string `json:"formats"`
	IsExternal bool     `json:"is_external"`
}

// DirEdge represents an aggregated edge between directories.
type DirEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

// SubgraphResult holds the result of a subgraph extraction or ego graph query.
type SubgraphResult struct {
	Nodes     map[string]*graph.Node `json:"nodes"`
	Edges     []graph.Edge           `json:"edges"`
	Truncated bool                   `json:"truncated,omitempty"`
}

// DirGraphResult holds the result of a directory-level graph aggregation.
type DirGraphResult struct {
	Nodes     map[string]*DirNode `json:"nodes"`
	Edges     []DirEdge           `json:"edges"`
	Truncated bool                `json:"truncated"`
}

// PathResult holds the result of a shortest-path query.
type PathResult struct {
	Paths      [][]string             `json:"paths"`
	Nodes      map[string]*graph.Node `json:"nodes"`
	Edges      []graph.Edge           `json:"edges"`
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	PathLength int                    `json:"path_length"`
}

// MatchNodes resolves a file query against the snapshot. A query matches a
// node when it names the file itself or a directory containing it, either
// as an absolute path or relative to the snapshot directory. Failing that,
// a query matches files whose path ends with it ("src/app.js"). Matches are
// sorted.
func MatchNodes(snap *graph.Snapshot, query string) []string {
	if query == "" {
		return nil
	}
	q := filepath.Clean(query)
	candidates := []string{q}
	if !filepath.IsAbs(q) && snap.Directory != "" {
		candidates = []string{filepath.Join(snap.Directory, q)}
	}

	var matches []string
	for key := range snap.Nodes {
		for _, c := range candidates {
			if key == c || strings.HasPrefix(key, c+string(filepath.Separator)) {
				matches = append(matches, key)
				break
			}
		}
	}
	if len(matches) == 0 && !filepath.IsAbs(q) {
		suffix := string(filepath.Separator) + q
		for key := range snap.Nodes {
			if strings.HasSuffix(key, suffix) {
				matches = append(matches, key)
			}
		}
	}
	sort.Strings(matches)
	return matches
}

func adjacency(snap *graph.Snapshot) (fwd, rev map[string][]graph.Edge) {
	fwd = make(map[string][]graph.Edge)
	rev = make(map[string][]graph.Edge)
	for _, e := range snap.Edges {
		fwd[e.From] = append(fwd[e.From], e)
		rev[e.To] = append(rev[e.To], e)
	}
	return fwd, rev
}

// induced returns the visited nodes and the edges between them.
func induced(snap *graph.Snapshot, visited map[string]bool) (map[string]*graph.Node, []graph.Edge) {
	nodes := make(map[string]*graph.Node)
	for key := range visited {
		if n, ok := snap.Nodes[key]; ok {
			nodes[key] = n
		}
	}
	edges := make([]graph.Edge, 0)
	for _, e := range snap.Edges {
		if visited[e.From] && visited[e.To] {
			edges = append(edges, e)
		}
	}
	return nodes, edges
}

// ExtractSubgraph does BFS from roots to depth, collecting nodes and edges
// in both directions. Roots are matched with MatchNodes.
func ExtractSubgraph(snap *graph.Snapshot, roots []string, depth int) *SubgraphResult {
	fwd, rev := adjacency(snap)

	visited := make(map[string]bool)
	queue := make([]string, 0, len(roots))
	for _, r := range roots {
		for _, key := range MatchNodes(snap, r) {
			if !visited[key] {
				visited[key] = true
				queue = append(queue, key)
			}
		}
	}

	for d := 0; d < depth && len(queue) > 0; d++ {
		var next []string
		for _, node := range queue {
			for _, e := range fwd[node] {
				if !visited[e.To] {
					visited[e.To] = true
					next = append(next, e.To)
				}
			}
			for _, e := range rev[node] {
				if !visited[e.From] {
					visited[e.From] = true
					next = append(next, e.From)
				}
			}
		}
		queue = next
	}

	nodes, edges := induced(snap, visited)
	return &SubgraphResult{Nodes: nodes, Edges: edges}
}

// CapGraph returns a subset of the graph with at most maxNodes nodes,
// preferring high-degree nodes (most connected = most interesting).
func CapGraph(nodes map[string]*graph.Node, edges []graph.Edge, maxNodes int) *SubgraphResult {
	if maxNodes <= 0 || len(nodes) <= maxNodes {
		return &SubgraphResult{Nodes: nodes, Edges: edges}
	}

	degree := make(map[string]int)
	for _, e := range edges {
		degree[e.From]++
		degree[e.To]++
	}

	type ranked struct {
		key string
		deg int
	}
	var rankedNodes []ranked
	for key := range nodes {
		rankedNodes = append(rankedNodes, ranked{key, degree[key]})
	}
	sort.Slice(rankedNodes, func(i, j int) bool {
		if rankedNodes[i].deg != rankedNodes[j].deg {
			return rankedNodes[i].deg > rankedNodes[j].deg
		}
		return rankedNodes[i].key < rankedNodes[j].key
	})

	keep := make(map[string]bool)
	for i := 0; i < maxNodes && i < len(rankedNodes); i++ {
		keep[rankedNodes[i].key] = true
	}

	capped := make(map[string]*graph.Node)
	for key := range keep {
		capped[key] = nodes[key]
	}
	var cappedEdges []graph.Edge
	for _, e := range edges {
		if keep[e.From] && keep[e.To] {
			cappedEdges = append(cappedEdges, e)
		}
	}

	return &SubgraphResult{Nodes: capped, Edges: cappedEdges, Truncated: true}
}

// EgoGraph computes the neighborhood of a file with directional control.
// Direction can be "deps" (what it imports), "rdeps" (what imports it), or
// "both". maxNodes caps the result size (0 means 500).
func EgoGraph(snap *graph.Snapshot, target string, depth int, direction string, maxNodes int) *SubgraphResult {
	if direction == "" {
		direction = "both"
	}
	if maxNodes == 0 {
		maxNodes = 500
	}

	fwd, rev := adjacency(snap)

	visited := make(map[string]bool)
	var queue []string
	for _, key := range MatchNodes(snap, target) {
		visited[key] = true
		queue = append(queue, key)
	}

	if len(queue) == 0 {
		return &SubgraphResult{
			Nodes: map[string]*graph.Node{},
			Edges: []graph.Edge{},
		}
	}

	truncated := false

	for d := 0; d < depth && len(queue) > 0; d++ {
		var next []string
		for _, node := range queue {
			if direction == "deps" || direction == "both" {
				for _, e := range fwd[node] {
					if !visited[e.To] {
						visited[e.To] = true
						next = append(next, e.To)
					}
				}
			}
			if direction == "rdeps" || direction == "both" {
				for _, e := range rev[node] {
					if !visited[e.From] {
						visited[e.From] = true
						next = append(next, e.From)
					}
				}
			}
		}
		queue = next

		if len(visited) >= maxNodes {
			truncated = true
			break
		}
	}

	nodes, edges := induced(snap, visited)
	return &SubgraphResult{
		Nodes:     nodes,
		Edges:     edges,
		Truncated: truncated,
	}
}

// Dependents returns every file that transitively imports target, sorted.
func Dependents(snap *graph.Snapshot, target string) []string {
	targets := MatchNodes(snap, target)
	ego := EgoGraph(snap, target, len(snap.Nodes), "rdeps", len(snap.Nodes)+1)
	isTarget := make(map[string]bool, len(targets))
	for _, t := range targets {
		isTarget[t] = true
	}
	var out []string
	for key := range ego.Nodes {
		if !isTarget[key] {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// FindPaths finds all shortest import paths between from and to queries.
func FindPaths(snap *graph.Snapshot, fromQ, toQ string, maxPaths int) *PathResult {
	if maxPaths <= 0 {
		maxPaths = 10
	}

	fwd := make(map[string][]string)
	for _, e := range snap.Edges {
		fwd[e.From] = append(fwd[e.From], e.To)
	}

	fromNodes := MatchNodes(snap, fromQ)
	toNodes := MatchNodes(snap, toQ)

	emptyResult := &PathResult{
		Paths:      [][]string{},
		Nodes:      map[string]*graph.Node{},
		Edges:      []graph.Edge{},
		From:       fromQ,
		To:         toQ,
		PathLength: 0,
	}

	if len(fromNodes) == 0 || len(toNodes) == 0 {
		return emptyResult
	}

	toSet := make(map[string]bool)
	for _, n := range toNodes {
		toSet[n] = true
	}

	type bfsEntry struct {
		node  string
		depth int
	}
	parents := make(map[string][]string)
	dist := make(map[string]int)

	var queue []bfsEntry
	for _, n := range fromNodes {
		dist[n] = 0
		queue = append(queue, bfsEntry{n, 0})
	}

	foundDepth := -1

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		if foundDepth >= 0 && curr.depth > foundDepth {
			break
		}

		if toSet[curr.node] {
			foundDepth = curr.depth
		}

		for _, neighbor := range fwd[curr.node] {
			nextDepth := curr.depth + 1
			if _, seen := dist[neighbor]; !seen {
				dist[neighbor] = nextDepth
				parents[neighbor] = []string{curr.node}
				queue = append(queue, bfsEntry{neighbor, nextDepth})
			} else if dist[neighbor] == nextDepth {
				parents[neighbor] = append(parents[neighbor], curr.node)
			}
		}
	}

	var reachedTargets []string
	for _, n := range toNodes {
		if _, ok := dist[n]; ok {
			reachedTargets = append(reachedTargets, n)
		}
	}

	if len(reachedTargets) == 0 {
		return emptyResult
	}

	fromSet := make(map[string]bool)
	for _, n := range fromNodes {
		fromSet[n] = true
	}

	var allPaths [][]string
	var backtrack func(node string, path []string)
	backtrack = func(node string, path []string) {
		if len(allPaths) >= maxPaths {
			return
		}
		current := make([]string, len(path)+1)
		current[0] = node
		copy(current[1:], path)

		if fromSet[node] {
			allPaths = append(allPaths, current)
			return
		}
		for _, p := range parents[node] {
			backtrack(p, current)
		}
	}

	for _, target := range reachedTargets {
		if len(allPaths) >= maxPaths {
			break
		}
		backtrack(target, nil)
	}

	pathNodes := make(map[string]bool)
	pathEdgeSet := make(map[string]bool)
	for _, p := range allPaths {
		for _, n := range p {
			pathNodes[n] = true
		}
		for i := 0; i < len(p)-1; i++ {
			pathEdgeSet[p[i]+"->"+p[i+1]] = true
		}
	}

	resultNodes := make(map[string]*graph.Node)
	for key := range pathNodes {
		if n, ok := snap.Nodes[key]; ok {
			resultNodes[key] = n
		}
	}

	var resultEdges []graph.Edge
	for _, e := range snap.Edges {
		if pathEdgeSet[e.From+"->"+e.To] {
			resultEdges = append(resultEdges, e)
		}
	}

	pathLength := 0
	if len(allPaths) > 0 {
		pathLength = len(allPaths[0]) - 1
	}

	return &PathResult{
		Paths:      allPaths,
		Nodes:      resultNodes,
		Edges:      resultEdges,
		From:       fromQ,
		To:         toQ,
		PathLength: pathLength,
	}
}

// AggregateDirectories aggregates the file-level graph into a directory-level
// graph with optional filtering. maxDirs caps the number of directories
// (0 = 500 default).
func AggregateDirectories(snap *graph.Snapshot, hideExternal bool, minEdgeWeight, maxDirs int) *DirGraphResult {
	if minEdgeWeight < 1 {
		minEdgeWeight = 1
	}
	if maxDirs <= 0 {
		maxDirs = 500
	}

	dirNodes := make(map[string]*DirNode)
	included := make(map[string]bool)
	for _, node := range snap.Nodes {
		if hideExternal && node.IsExternal {
			continue
		}
		included[node.Key] = true
		dir := filepath.Dir(node.Key)
		dn, ok := dirNodes[dir]
		if !ok {
			dn = &DirNode{Dir: dir, IsExternal: node.IsExternal}
			dirNodes[dir] = dn
		}
		dn.FileCount++
		if node.Format == "" {
			continue
		}
		found := false
		for _, f := range dn.Formats {
			if f == node.Format {
				found = true
				break
			}
		}
		if !found {
			dn.Formats = append(dn.Formats, node.Format)
			sort.Strings(dn.Formats)
		}
	}

	edgeWeight := make(map[string]int)
	for _, e := range snap.Edges {
		if !included[e.From] || !included[e.To] {
			continue
		}
		fromDir := filepath.Dir(e.From)
		toDir := filepath.Dir(e.To)
		if fromDir == toDir {
			continue
		}
		edgeWeight[fromDir+"|"+toDir]++
	}

	dirEdges := make([]DirEdge, 0)
	for key, weight := range edgeWeight {
		if weight < minEdgeWeight {
			continue
		}
		parts := strings.SplitN(key, "|", 2)
		dirEdges = append(dirEdges, DirEdge{
			From:   parts[0],
			To:     parts[1],
			Weight: weight,
		})
	}
	sort.Slice(dirEdges, func(i, j int) bool {
		if dirEdges[i].From != dirEdges[j].From {
			return dirEdges[i].From < dirEdges[j].From
		}
		return dirEdges[i].To < dirEdges[j].To
	})

	truncated := false
	if len(dirNodes) > maxDirs {
		dirDegree := make(map[string]int)
		for _, e := range dirEdges {
			dirDegree[e.From]++
			dirDegree[e.To]++
		}
		type rankedDir struct {
			dir string
			deg int
		}
		var ranked []rankedDir
		for dir := range dirNodes {
			ranked = append(ranked, rankedDir{dir, dirDegree[dir]})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].deg != ranked[j].deg {
				return ranked[i].deg > ranked[j].deg
			}
			return ranked[i].dir < ranked[j].dir
		})
		keep := make(map[string]bool)
		for i := 0; i < maxDirs && i < len(ranked); i++ {
			keep[ranked[i].dir] = true
		}
		for dir := range dirNodes {
			if !keep[dir] {
				delete(dirNodes, dir)
			}
		}
		filteredEdges := make([]DirEdge, 0)
		for _, e := range dirEdges {
			if keep[e.From] && keep[e.To] {
				filteredEdges = append(filteredEdges, e)
			}
		}
		dirEdges = filteredEdges
		truncated = true
	}

	// Check if we filtered any directories compared to total
	if !truncated {
		truncated = len(snap.Directories()) > len(dirNodes)
	}

	return &DirGraphResult{
		Nodes:     dirNodes,
		Edges:     dirEdges,
		Truncated: truncated,
	}
}

// Hotspot is a file many others import.
type Hotspot struct {
	Key       string `json:"key"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

// Hotspots returns up to n files imported by at least minImporters
// others, most imported first.
func Hotspots(snap *graph.Snapshot, n, minImporters int) []Hotspot {
	in := snap.ComputeInDegrees()
	out := snap.ComputeOutDegrees()

	var spots []Hotspot
	for key, deg := range in {
		if deg >= minImporters && deg > 0 {
			spots = append(spots, Hotspot{Key: key, InDegree: deg, OutDegree: out[key]})
		}
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].InDegree != spots[j].InDegree {
			return spots[i].InDegree > spots[j].InDegree
		}
		return spots[i].Key < spots[j].Key
	})
	if n > 0 && len(spots) > n {
		spots = spots[:n]
	}
	return spots
}
