package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deptree/deptree/pkg/config"
	"github.com/deptree/deptree/pkg/graph"
	"github.com/deptree/deptree/pkg/graphquery"
)

func newServeCmd() *cobra.Command {
	var (
		projectPath string
		port        string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a local API server over stored snapshots",
		Long: `Starts an HTTP server on localhost that serves the project's locally stored
snapshots and graph queries (subgraph, directories, ego graph, paths and
dependents) as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(projectPath, port)
		},
	}

	cmd.Flags().StringVar(&projectPath, "project", "", "Project directory (default: detect project root)")
	cmd.Flags().StringVar(&port, "port", "7700", "Port to serve on")

	return cmd
}

func runServe(projectPath, port string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	project, err := resolveProject(cwd, projectPath)
	if err != nil {
		return err
	}

	srv := &localAPIServer{
		project: project,
		snapDir: config.SnapshotDir(project),
	}

	fmt.Fprintf(os.Stderr, "deptree API server\n")
	fmt.Fprintf(os.Stderr, "  Project:    %s\n", project)
	fmt.Fprintf(os.Stderr, "  Snapshots:  %s\n", srv.snapDir)
	fmt.Fprintf(os.Stderr, "  Listening:  http://localhost:%s\n", port)

	return http.ListenAndServe(":"+port, corsMiddleware(srv.routes()))
}

type localAPIServer struct {
	project string
	snapDir string
}

func (s *localAPIServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/project", s.handleProject)
	mux.HandleFunc("GET /api/snapshots", s.listSnapshots)
	mux.HandleFunc("GET /api/snapshots/{id}", s.withSnapshot(s.handleGetSnapshot))
	mux.HandleFunc("GET /api/snapshots/{id}/subgraph", s.withSnapshot(s.handleSubgraph))
	mux.HandleFunc("GET /api/snapshots/{id}/dirs", s.withSnapshot(s.handleDirs))
	mux.HandleFunc("GET /api/snapshots/{id}/ego", s.withSnapshot(s.handleEgo))
	mux.HandleFunc("GET /api/snapshots/{id}/path", s.withSnapshot(s.handlePath))
	mux.HandleFunc("GET /api/snapshots/{id}/dependents", s.withSnapshot(s.handleDependents))
	mux.HandleFunc("GET /api/snapshots/{id}/hotspots", s.withSnapshot(s.handleHotspots))
	return mux
}

func (s *localAPIServer) handleProject(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"name":      filepath.Base(s.project),
		"directory": s.project,
		"slug":      config.ProjectSlug(s.project),
	})
}

type snapInfo struct {
	ID          string `json:"id"`
	Entry       string `json:"entry"`
	Nodes       int    `json:"node_count"`
	Edges       int    `json:"edge_count"`
	Directories int    `json:"directory_count"`
	Unresolved  int    `json:"unresolved_count"`
	ExtractedAt string `json:"extracted_at"`
}

func (s *localAPIServer) listSnapshots(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.snapDir)
	if err != nil {
		writeJSON(w, []snapInfo{})
		return
	}

	snaps := []snapInfo{}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		snap, err := graph.LoadSnapshot(filepath.Join(s.snapDir, e.Name()))
		if err != nil {
			continue
		}
		snaps = append(snaps, snapInfo{
			ID:          snap.ID,
			Entry:       snap.Entry,
			Nodes:       snap.Stats.NodeCount,
			Edges:       snap.Stats.EdgeCount,
			Directories: snap.Stats.DirectoryCount,
			Unresolved:  snap.Stats.UnresolvedCount,
			ExtractedAt: snap.ExtractedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ExtractedAt > snaps[j].ExtractedAt })

	writeJSON(w, snaps)
}

// withSnapshot loads the {id} snapshot or answers 404.
func (s *localAPIServer) withSnapshot(h func(http.ResponseWriter, *http.Request, *graph.Snapshot)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.findSnapshot(r.PathValue("id"))
		if snap == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r, snap)
	}
}

func (s *localAPIServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request, snap *graph.Snapshot) {
	writeJSON(w, snap)
}

func (s *localAPIServer) handleSubgraph(w http.ResponseWriter, r *http.Request, snap *graph.Snapshot) {
	roots := r.URL.Query()["root"]
	depth := intParam(r, "depth", 2)

	// If no roots specified, return the full graph (capped at 500 nodes)
	if len(roots) == 0 {
		writeJSON(w, graphquery.CapGraph(snap.Nodes, snap.Edges, 500))
		return
	}

	writeJSON(w, graphquery.ExtractSubgraph(snap, roots, depth))
}

func (s *localAPIServer) handleDirs(w http.ResponseWriter, r *http.Request, snap *graph.Snapshot) {
	hideExternal := r.URL.Query().Get("hide_external") == "true"
	minEdgeWeight := intParam(r, "min_edge_weight", 1)

	writeJSON(w, graphquery.AggregateDirectories(snap, hideExternal, minEdgeWeight, 0))
}

func (s *localAPIServer) handleEgo(w http.ResponseWriter, r *http.Request, snap *graph.Snapshot) {
	target := r.URL.Query().Get("target")
	if target == "" {
		http.Error(w, "target parameter required", http.StatusBadRequest)
		return
	}

	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = "both"
	}

	writeJSON(w, graphquery.EgoGraph(snap, target, intParam(r, "depth", 2), direction, 0))
}

func (s *localAPIServer) handlePath(w http.ResponseWriter, r *http.Request, snap *graph.Snapshot) {
	fromQ := r.URL.Query().Get("from")
	toQ := r.URL.Query().Get("to")
	if toQ == "" {
		http.Error(w, "to parameter required", http.StatusBadRequest)
		return
	}
	if fromQ == "" {
		fromQ = snap.Entry
	}

	writeJSON(w, graphquery.FindPaths(snap, fromQ, toQ, intParam(r, "max_paths", 10)))
}

func (s *localAPIServer) handleDependents(w http.ResponseWriter, r *http.Request, snap *graph.Snapshot) {
	file := r.URL.Query().Get("file")
	if file == "" {
		http.Error(w, "file parameter required", http.StatusBadRequest)
		return
	}
	deps := graphquery.Dependents(snap, file)
	if deps == nil {
		deps = []string{}
	}
	writeJSON(w, deps)
}

func (s *localAPIServer) handleHotspots(w http.ResponseWriter, r *http.Request, snap *graph.Snapshot) {
	spots := graphquery.Hotspots(snap, intParam(r, "limit", 20), intParam(r, "min_importers", 2))
	if spots == nil {
		spots = []graphquery.Hotspot{}
	}
	writeJSON(w, spots)
}

// findSnapshot looks up a snapshot by ID or ID prefix.
func (s *localAPIServer) findSnapshot(id string) *graph.Snapshot {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil
	}
	path := filepath.Join(s.snapDir, id+".json")
	if snap, err := graph.LoadSnapshot(path); err == nil {
		return snap
	}

	entries, err := os.ReadDir(s.snapDir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		if strings.HasPrefix(name, id) {
			if snap, err := graph.LoadSnapshot(filepath.Join(s.snapDir, e.Name())); err == nil {
				return snap
			}
		}
	}

	return nil
}

func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
