package graph

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func testdataPath(name string) string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "testdata", name)
}

func TestComputeDelta_Testdata(t *testing.T) {
	base, err := LoadSnapshot(testdataPath("snapshot_base.json"))
	if err != nil {
		t.Fatalf("loading base: %v", err)
	}
	head, err := LoadSnapshot(testdataPath("snapshot_head.json"))
	if err != nil {
		t.Fatalf("loading head: %v", err)
	}

	delta := ComputeDelta(base, head)

	// Head adds store.js and config.js.
	if delta.Stats.AddedNodeCount != 2 {
		t.Errorf("AddedNodeCount = %d, want 2", delta.Stats.AddedNodeCount)
	}
	if delta.Stats.RemovedNodeCount != 0 {
		t.Errorf("RemovedNodeCount = %d, want 0", delta.Stats.RemovedNodeCount)
	}
	// app -> store, app -> config, store -> util
	if delta.Stats.AddedEdgeCount != 3 {
		t.Errorf("AddedEdgeCount = %d, want 3", delta.Stats.AddedEdgeCount)
	}
	if delta.Stats.RemovedEdgeCount != 0 {
		t.Errorf("RemovedEdgeCount = %d, want 0", delta.Stats.RemovedEdgeCount)
	}

	wantNodes := []string{"/app/src/config.js", "/app/src/store.js"}
	for i, n := range delta.AddedNodes {
		if n.Key != wantNodes[i] {
			t.Errorf("AddedNodes[%d] = %s, want %s", i, n.Key, wantNodes[i])
		}
	}

	if len(delta.FixedMissing) != 1 || delta.FixedMissing[0] != (Missing{File: "/app/src/app.js", Specifier: "./config"}) {
		t.Errorf("FixedMissing = %v, want app.js ./config", delta.FixedMissing)
	}
	if len(delta.AddedMissing) != 1 || delta.AddedMissing[0] != (Missing{File: "/app/src/index.js", Specifier: "./polyfill"}) {
		t.Errorf("AddedMissing = %v, want index.js ./polyfill", delta.AddedMissing)
	}
}

func TestComputeDelta_Empty(t *testing.T) {
	snap := &Snapshot{
		ID:    "test",
		Nodes: map[string]*Node{},
	}

	delta := ComputeDelta(snap, snap)
	if delta.Stats.AddedNodeCount != 0 {
		t.Errorf("AddedNodeCount = %d, want 0", delta.Stats.AddedNodeCount)
	}
	if delta.Stats.RemovedNodeCount != 0 {
		t.Errorf("RemovedNodeCount = %d, want 0", delta.Stats.RemovedNodeCount)
	}
}

func TestComputeDelta_AllRemoved(t *testing.T) {
	base := &Snapshot{
		ID: "base",
		Nodes: map[string]*Node{
			"/p/a.js": {Key: "/p/a.js", Format: "commonjs"},
			"/p/b.js": {Key: "/p/b.js", Format: "commonjs"},
		},
		Edges: []Edge{
			{From: "/p/a.js", To: "/p/b.js", Type: "require"},
		},
	}
	head := &Snapshot{
		ID:    "head",
		Nodes: map[string]*Node{},
	}

	delta := ComputeDelta(base, head)
	if delta.Stats.RemovedNodeCount != 2 {
		t.Errorf("RemovedNodeCount = %d, want 2", delta.Stats.RemovedNodeCount)
	}
	if delta.Stats.RemovedEdgeCount != 1 {
		t.Errorf("RemovedEdgeCount = %d, want 1", delta.Stats.RemovedEdgeCount)
	}
	if delta.RemovedNodes[0].Key != "/p/a.js" {
		t.Errorf("RemovedNodes not sorted: %v", delta.RemovedNodes)
	}
}

func TestSnapshotStatsAndRoundTrip(t *testing.T) {
	snap, err := LoadSnapshot(testdataPath("snapshot_head.json"))
	if err != nil {
		t.Fatalf("loading head: %v", err)
	}
	snap.ComputeStats()
	if snap.Stats.NodeCount != 6 || snap.Stats.EdgeCount != 6 || snap.Stats.ExternalCount != 1 {
		t.Errorf("unexpected stats: %+v", snap.Stats)
	}
	// /app/src and /app/node_modules/lodash
	if snap.Stats.DirectoryCount != 2 {
		t.Errorf("DirectoryCount = %d, want 2", snap.Stats.DirectoryCount)
	}
	if snap.Stats.ExtractionMs != 15 {
		t.Errorf("ExtractionMs = %d, want 15", snap.Stats.ExtractionMs)
	}

	path := filepath.Join(t.TempDir(), "nested", "snap.json")
	if err := SaveSnapshot(path, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(loaded.Nodes) != 6 || loaded.Entry != "/app/src/index.js" {
		t.Errorf("round trip lost data: %d nodes, entry %q", len(loaded.Nodes), loaded.Entry)
	}
	if got := loaded.NonExistent["/app/src/index.js"]; len(got) != 1 || got[0] != "./polyfill" {
		t.Errorf("NonExistent = %v", loaded.NonExistent)
	}
}

func TestIsExternalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/p/node_modules/x/index.js", true},
		{"/p/src/node_modules_backup/x.js", false},
		{"/p/src/a.js", false},
	}
	for _, tt := range tests {
		if got := IsExternalPath(tt.path); got != tt.want {
			t.Errorf("IsExternalPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDecodeSnapshot(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"id":"x","entry":"/a.js"}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if snap.Nodes == nil {
		t.Error("expected non-nil node map")
	}

	if _, err := DecodeSnapshot([]byte(`{`)); err == nil {
		t.Error("expected error for truncated JSON")
	}

	if _, err := DecodeDelta([]byte(`[]`)); err == nil {
		t.Error("expected error decoding an array as a delta")
	}
}

func TestIsSnapshot(t *testing.T) {
	snap := &Snapshot{ID: "s1", Entry: "/app/index.js", Nodes: map[string]*Node{"/app/index.js": {Key: "/app/index.js"}}}
	encoded, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}

	tests := []struct {
		name string
		data string
		want bool
	}{
		{"encoded snapshot", string(encoded), true},
		{"package.json", `{"name": "app", "main": "index.js"}`, false},
		{"missing id", `{"entry": "/app/index.js", "nodes": {}}`, false},
		{"array", `[{"id": "s1"}]`, false},
		{"javascript", `module.exports = {id: 1, entry: "", nodes: {}};`, false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSnapshot([]byte(tc.data)); got != tc.want {
				t.Errorf("IsSnapshot = %v, want %v", got, tc.want)
			}
		})
	}

	data, err := os.ReadFile(testdataPath("snapshot_base.json"))
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}
	if !IsSnapshot(data) {
		t.Error("testdata snapshot not recognized")
	}
}
