package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deptree/deptree/pkg/graph"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func sampleProject(t *testing.T) string {
	return writeProject(t, map[string]string{
		"package.json": `{"name": "sample"}`,
		"index.js":     "require('./a');\nrequire('./b');\n",
		"a.js":         "module.exports = require('./b');\n",
		"b.js":         "module.exports = 1;\n",
	})
}

func TestTreeCmdFlags(t *testing.T) {
	cmd := newTreeCmd()
	f := cmd.Flags()

	format, _ := f.GetString("format")
	if format != "text" {
		t.Errorf("default format = %q, want text", format)
	}

	for _, flag := range []string{"directory", "require-config", "alias-config", "tsconfig", "entry-field", "exclude", "exclude-node-modules", "include-dynamic", "database-url", "no-cache"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestDiffCmdFlags(t *testing.T) {
	cmd := newDiffCmd()
	f := cmd.Flags()

	format, _ := f.GetString("format")
	if format != "text" {
		t.Errorf("default format = %q, want text", format)
	}

	for _, flag := range []string{"base", "head", "project", "save", "fail-on-unresolved"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestSnapshotCmdFlags(t *testing.T) {
	cmd := newSnapshotCmd()
	f := cmd.Flags()

	for _, flag := range []string{"output", "backend", "bucket", "directory"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"a", "b", "c"}, "a"},
		{[]string{"", "b", "c"}, "b"},
		{[]string{"", "", "c"}, "c"},
		{[]string{"", "", ""}, ""},
	}

	for _, tt := range tests {
		got := firstNonEmpty(tt.args...)
		if got != tt.want {
			t.Errorf("firstNonEmpty(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestResolveProject(t *testing.T) {
	dir := sampleProject(t)
	sub := filepath.Join(dir, "src", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := resolveProject(sub, "")
	if err != nil {
		t.Fatalf("resolveProject: %v", err)
	}
	if got != dir {
		t.Errorf("resolveProject = %q, want %q", got, dir)
	}

	got, err = resolveProject(sub, sub)
	if err != nil {
		t.Fatalf("resolveProject: %v", err)
	}
	if got != sub {
		t.Errorf("explicit directory should win, got %q", got)
	}
}

func TestRunList(t *testing.T) {
	dir := sampleProject(t)
	var buf bytes.Buffer

	err := runList(context.Background(), &buf, listOpts{
		target:   filepath.Join(dir, "index.js"),
		relative: true,
	})
	if err != nil {
		t.Fatalf("runList: %v", err)
	}
	if got, want := buf.String(), "b.js\na.js\nindex.js\n"; got != want {
		t.Errorf("list = %q, want %q", got, want)
	}
}

func TestRunTree(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := sampleProject(t)
	entry := filepath.Join(dir, "index.js")

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := runTree(context.Background(), &buf, treeOpts{target: entry, format: "json"}); err != nil {
			t.Fatalf("runTree: %v", err)
		}
		var tree map[string]map[string]any
		if err := json.Unmarshal(buf.Bytes(), &tree); err != nil {
			t.Fatalf("decode tree: %v\n%s", err, buf.String())
		}
		children, ok := tree[entry]
		if !ok {
			t.Fatalf("expected entry key %s in %v", entry, tree)
		}
		if len(children) != 2 {
			t.Errorf("expected 2 direct dependencies, got %d", len(children))
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := runTree(context.Background(), &buf, treeOpts{target: entry, format: "text"}); err != nil {
			t.Fatalf("runTree: %v", err)
		}
		for _, want := range []string{"index.js\n", "├── a.js\n", "└── b.js\n"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("expected %q in output:\n%s", want, buf.String())
			}
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		if err := runTree(context.Background(), &buf, treeOpts{target: entry, format: "xml"}); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestSnapshotDiffAndQueries(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	ctx := context.Background()
	dir := sampleProject(t)
	entry := filepath.Join(dir, "index.js")
	snapPath := filepath.Join(t.TempDir(), "base.json")

	var idBuf bytes.Buffer
	if err := runSnapshot(ctx, &idBuf, snapshotOpts{entry: entry, output: snapPath}); err != nil {
		t.Fatalf("runSnapshot: %v", err)
	}
	snap, err := graph.LoadSnapshot(snapPath)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if strings.TrimSpace(idBuf.String()) != snap.ID {
		t.Errorf("printed ID %q, saved %q", idBuf.String(), snap.ID)
	}
	if snap.Stats.NodeCount != 3 || snap.Stats.EdgeCount != 3 {
		t.Errorf("unexpected stats %+v", snap.Stats)
	}

	t.Run("why", func(t *testing.T) {
		var buf bytes.Buffer
		if err := runWhy(ctx, &buf, whyOpts{target: snapPath, file: "b.js", maxPaths: 10}); err != nil {
			t.Fatalf("runWhy: %v", err)
		}
		if got := buf.String(); got != "1. index.js -> b.js\n" {
			t.Errorf("why = %q", got)
		}
	})

	t.Run("dependents", func(t *testing.T) {
		var buf bytes.Buffer
		if err := runDependents(ctx, &buf, dependentsOpts{target: snapPath, file: "b.js"}); err != nil {
			t.Fatalf("runDependents: %v", err)
		}
		if got := buf.String(); got != "a.js\nindex.js\n" {
			t.Errorf("dependents = %q", got)
		}
	})

	t.Run("dirs", func(t *testing.T) {
		var buf bytes.Buffer
		if err := runDirs(ctx, &buf, dirsOpts{target: snapPath, minEdgeWeight: 1}); err != nil {
			t.Fatalf("runDirs: %v", err)
		}
		if got := buf.String(); got != ". (3 files)\n" {
			t.Errorf("dirs = %q", got)
		}
	})

	t.Run("diff", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "b.js"), []byte("require('./c');\n"), 0o644); err != nil {
			t.Fatalf("rewrite b.js: %v", err)
		}

		var buf bytes.Buffer
		opts := diffOpts{base: snapPath, head: entry, format: "json"}
		opts.walk.directory = dir
		if err := runDiff(ctx, &buf, opts); err != nil {
			t.Fatalf("runDiff: %v", err)
		}
		var delta graph.Delta
		if err := json.Unmarshal(buf.Bytes(), &delta); err != nil {
			t.Fatalf("decode delta: %v", err)
		}
		if len(delta.AddedMissing) != 1 || delta.AddedMissing[0].Specifier != "./c" {
			t.Errorf("expected ./c to be newly unresolved, got %+v", delta.AddedMissing)
		}

		opts.failOnMissing = true
		buf.Reset()
		if err := runDiff(ctx, &buf, opts); err == nil {
			t.Error("expected error with --fail-on-unresolved")
		}
	})
}

func TestLocalAPIServer(t *testing.T) {
	snapDir := t.TempDir()
	snap := &graph.Snapshot{
		ID:        "0f3c2a",
		Entry:     "/app/index.js",
		Directory: "/app",
		Nodes: map[string]*graph.Node{
			"/app/index.js": {Key: "/app/index.js"},
			"/app/a.js":     {Key: "/app/a.js"},
		},
		Edges: []graph.Edge{{From: "/app/index.js", To: "/app/a.js", Type: "static"}},
	}
	snap.ComputeStats()
	if err := graph.SaveSnapshot(filepath.Join(snapDir, snap.ID+".json"), snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	srv := httptest.NewServer((&localAPIServer{project: "/app", snapDir: snapDir}).routes())
	defer srv.Close()

	get := func(path string) (*http.Response, []byte) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return resp, buf.Bytes()
	}

	t.Run("list", func(t *testing.T) {
		_, body := get("/api/snapshots")
		var infos []snapInfo
		if err := json.Unmarshal(body, &infos); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(infos) != 1 || infos[0].ID != snap.ID || infos[0].Nodes != 2 {
			t.Errorf("unexpected list %+v", infos)
		}
	})

	t.Run("dependents by prefix", func(t *testing.T) {
		_, body := get("/api/snapshots/0f3/dependents?file=a.js")
		var deps []string
		if err := json.Unmarshal(body, &deps); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(deps) != 1 || deps[0] != "/app/index.js" {
			t.Errorf("unexpected dependents %v", deps)
		}
	})

	t.Run("path", func(t *testing.T) {
		_, body := get("/api/snapshots/0f3c2a/path?to=a.js")
		var result struct {
			PathLength int `json:"path_length"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if result.PathLength != 1 {
			t.Errorf("path length = %d, want 1", result.PathLength)
		}
	})

	t.Run("missing parameter", func(t *testing.T) {
		resp, _ := get("/api/snapshots/0f3c2a/ego")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("unknown snapshot", func(t *testing.T) {
		resp, _ := get("/api/snapshots/nope")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestCacheCommandsRequireDatabase(t *testing.T) {
	t.Setenv("DEPTREE_DATABASE_URL", "")
	dir := writeProject(t, map[string]string{"package.json": "{}"})

	err := runCacheClear(context.Background(), cacheOpts{project: dir})
	if err == nil || !strings.Contains(err.Error(), "no cache database configured") {
		t.Fatalf("runCacheClear error = %v, want missing database error", err)
	}
	var out bytes.Buffer
	if err := runCacheStats(context.Background(), &out, cacheOpts{project: dir}); err == nil {
		t.Fatal("runCacheStats succeeded without a database")
	}
}

func TestJSONEntryIsWalked(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"package.json":  `{"name": "app"}`,
		"settings.json": `{"entry": "index.js", "nodes": 3}`,
	})
	entry := filepath.Join(dir, "package.json")
	if isSnapshotFile(entry) {
		t.Fatal("package.json taken for a snapshot")
	}

	var buf bytes.Buffer
	if err := runTree(context.Background(), &buf, treeOpts{target: entry, format: "json"}); err != nil {
		t.Fatalf("runTree: %v", err)
	}
	var tree map[string]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &tree); err != nil {
		t.Fatalf("decode tree: %v\n%s", err, buf.String())
	}
	if _, ok := tree[entry]; !ok {
		t.Errorf("expected entry key %s in %v", entry, tree)
	}

	if isSnapshotFile(filepath.Join(dir, "settings.json")) {
		t.Error("a JSON object without an id taken for a snapshot")
	}
}

func TestDiffSaveAndLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := sampleProject(t)
	ctx := context.Background()
	entry := filepath.Join(dir, "index.js")
	snapPath := filepath.Join(t.TempDir(), "base.snapshot")

	if err := runSnapshot(ctx, &bytes.Buffer{}, snapshotOpts{entry: entry, output: snapPath}); err != nil {
		t.Fatalf("runSnapshot: %v", err)
	}
	if !isSnapshotFile(snapPath) {
		t.Fatal("snapshot without a .json extension not recognized")
	}
	if err := os.WriteFile(filepath.Join(dir, "b.js"), []byte("require('./missing');\n"), 0o644); err != nil {
		t.Fatalf("rewrite b.js: %v", err)
	}

	var buf bytes.Buffer
	opts := diffOpts{base: snapPath, head: entry, format: "json", save: true}
	opts.walk.directory = dir
	if err := runDiff(ctx, &buf, opts); err != nil {
		t.Fatalf("runDiff --save: %v", err)
	}
	var saved graph.Delta
	if err := json.Unmarshal(buf.Bytes(), &saved); err != nil {
		t.Fatalf("decode delta: %v", err)
	}

	buf.Reset()
	load := diffOpts{load: saved.ID, project: dir, format: "json"}
	if err := runDiff(ctx, &buf, load); err != nil {
		t.Fatalf("runDiff --load: %v", err)
	}
	var loaded graph.Delta
	if err := json.Unmarshal(buf.Bytes(), &loaded); err != nil {
		t.Fatalf("decode loaded delta: %v", err)
	}
	if loaded.ID != saved.ID || len(loaded.AddedMissing) != 1 || loaded.AddedMissing[0].Specifier != "./missing" {
		t.Errorf("loaded delta %+v, saved %+v", loaded, saved)
	}

	if err := runDiff(ctx, &buf, diffOpts{load: "no-such-delta", project: dir}); err == nil {
		t.Error("expected error loading an unknown delta")
	}
	if err := runDiff(ctx, &buf, diffOpts{base: snapPath, project: dir}); err == nil {
		t.Error("expected error without --head")
	}
}
