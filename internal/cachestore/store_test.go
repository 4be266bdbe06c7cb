package cachestore

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/deptree/deptree/pkg/deptree"
	"github.com/deptree/deptree/pkg/fsutil"
)

func fakeModTimes(times map[string]time.Time) ModTimeFunc {
	return func(path string) (time.Time, error) {
		if mt, ok := times[path]; ok {
			return mt, nil
		}
		return time.Time{}, os.ErrNotExist
	}
}

func TestSubtreeFiles(t *testing.T) {
	tree := deptree.Tree{
		"/p/b.js": deptree.Tree{"/p/c.js": deptree.Tree{}},
		"/p/c.js": deptree.Tree{},
	}
	got := subtreeFiles("/p/a.js", tree)
	if got[0] != "/p/a.js" {
		t.Errorf("expected root first, got %v", got)
	}
	rest := append([]string(nil), got[1:]...)
	sort.Strings(rest)
	if len(rest) != 2 || rest[0] != "/p/b.js" || rest[1] != "/p/c.js" {
		t.Errorf("unexpected files %v", got)
	}
}

func TestFresh(t *testing.T) {
	built := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	before := built.Add(-time.Hour)
	after := built.Add(time.Hour)

	entry := Entry{
		File:    "/p/a.js",
		Subtree: deptree.Tree{"/p/b.js": deptree.Tree{}},
		BuiltAt: built,
	}

	tests := []struct {
		name  string
		times map[string]time.Time
		want  bool
	}{
		{"unchanged", map[string]time.Time{"/p/a.js": before, "/p/b.js": before}, true},
		{"modified at build time", map[string]time.Time{"/p/a.js": built, "/p/b.js": before}, true},
		{"root modified", map[string]time.Time{"/p/a.js": after, "/p/b.js": before}, false},
		{"dependency modified", map[string]time.Time{"/p/a.js": before, "/p/b.js": after}, false},
		{"dependency deleted", map[string]time.Time{"/p/a.js": before}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := fresh(entry, fakeModTimes(tc.times)); got != tc.want {
				t.Errorf("fresh = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected two up and two down migrations, got %d files", len(entries))
	}
}

func TestNewStore(t *testing.T) {
	// NewStore should not panic with nil db (it just stores the reference).
	s := NewStore(nil, "proj", nil)
	if s == nil {
		t.Fatal("NewStore returned nil")
	}
	if s.logger == nil || s.modTime == nil {
		t.Error("expected default logger and modTime")
	}
}

func TestStoreRequiresOptions(t *testing.T) {
	s := NewStore(nil, "proj", nil)
	ctx := context.Background()

	if _, _, err := s.Load(ctx, ""); err == nil {
		t.Error("Load accepted an empty options fingerprint")
	}
	if err := s.Save(ctx, "", deptree.NewVisited(), time.Now()); err == nil {
		t.Error("Save accepted an empty options fingerprint")
	}

	// Nothing committed means nothing to write, so the nil db is never used.
	seeded := deptree.NewVisited()
	seeded.Seed("/p/a.js", nil)
	if err := s.Save(ctx, "fp", seeded, time.Now()); err != nil {
		t.Errorf("Save of seeded-only cache: %v", err)
	}
}

func walkInto(t *testing.T, visited *deptree.Visited, opts deptree.Options) {
	t.Helper()
	opts.Visited = visited
	if _, err := deptree.Build(opts); err != nil {
		t.Fatalf("Build %s: %v", opts.Filename, err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DEPTREE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DEPTREE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := Open(ctx, url, "test-"+t.Name()+"-"+time.Now().Format("150405.000"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		store.Purge(ctx)
		store.Close()
	})
	return store
}

var projectFS = fsutil.MapFS{
	"/p/a.js":                         "require('./b');\nrequire('lib');",
	"/p/b.js":                         "",
	"/p/gone.js":                      "",
	"/p/node_modules/lib/package.json": `{"main": "index.js"}`,
	"/p/node_modules/lib/index.js":     "",
}

// TestStoreRoundTrip needs a Postgres database; set DEPTREE_TEST_DATABASE_URL
// to run it.
func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	built := time.Now().Add(-time.Minute).Truncate(time.Second)
	store.modTime = fakeModTimes(map[string]time.Time{
		"/p/a.js":                      built,
		"/p/b.js":                      built,
		"/p/node_modules/lib/index.js": built,
	})

	opts := deptree.Options{Filename: "/p/a.js", Directory: "/p", FS: projectFS}
	fp := opts.Fingerprint()
	visited := deptree.NewVisited()
	walkInto(t, visited, opts)
	gone := opts
	gone.Filename = "/p/gone.js"
	walkInto(t, visited, gone)
	visited.Seed("/p/seeded.js", deptree.Tree{})

	if err := store.Save(ctx, fp, visited, built); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, stale, err := store.Load(ctx, fp)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stale != 1 {
		t.Errorf("expected 1 stale entry, got %d", stale)
	}
	if _, ok := loaded.Get("/p/a.js"); !ok {
		t.Error("expected /p/a.js to be loaded")
	}
	if _, ok := loaded.Get("/p/gone.js"); ok {
		t.Error("expected /p/gone.js to be dropped")
	}
	if _, ok := loaded.Get("/p/seeded.js"); ok {
		t.Error("seeded entries are not saved")
	}

	entries, err := store.Entries(ctx, fp)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected a.js, b.js and lib/index.js, got %d entries", len(entries))
	}
	for _, e := range entries {
		if !e.BuiltAt.Equal(built) {
			t.Errorf("%s built_at = %v, want %v", e.File, e.BuiltAt, built)
		}
	}

	// Saving the reloaded cache writes nothing, so build times are kept.
	if err := store.Save(ctx, fp, loaded, time.Now()); err != nil {
		t.Fatalf("Save reloaded: %v", err)
	}
	again, err := store.Entries(ctx, fp)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	for i := range again {
		if !again[i].BuiltAt.Equal(entries[i].BuiltAt) {
			t.Errorf("%s built_at moved from %v to %v", again[i].File, entries[i].BuiltAt, again[i].BuiltAt)
		}
	}
}

func TestStoreSeparatesOptions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	store.modTime = func(string) (time.Time, error) { return time.Unix(0, 0), nil }

	plain := deptree.Options{Filename: "/p/a.js", Directory: "/p", FS: projectFS}
	filtered := plain
	filtered.ExcludeNodeModules = true

	for _, opts := range []deptree.Options{filtered, plain} {
		visited := deptree.NewVisited()
		walkInto(t, visited, opts)
		if err := store.Save(ctx, opts.Fingerprint(), visited, time.Now()); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	for _, tc := range []struct {
		name string
		opts deptree.Options
		want int
	}{
		{"filtered", filtered, 1},
		{"plain", plain, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			loaded, _, err := store.Load(ctx, tc.opts.Fingerprint())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			a, ok := loaded.Get("/p/a.js")
			if !ok {
				t.Fatal("expected /p/a.js to be loaded")
			}
			if len(a) != tc.want {
				t.Errorf("a.js has %d dependencies, want %d: %v", len(a), tc.want, a)
			}

			list, err := deptree.BuildList(deptree.Options{
				Filename:           "/p/a.js",
				Directory:          "/p",
				FS:                 projectFS,
				ExcludeNodeModules: tc.opts.ExcludeNodeModules,
				Visited:            loaded,
			})
			if err != nil {
				t.Fatalf("BuildList: %v", err)
			}
			if len(list) != tc.want+1 {
				t.Errorf("list = %v", list)
			}
		})
	}

	all, err := store.Entries(ctx, "")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected entries of both option sets, got %d", len(all))
	}
}

func TestOpenBadURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://127.0.0.1:1/none?sslmode=disable&connect_timeout=1", "p", nil)
	if err == nil {
		t.Fatal("expected error connecting to closed port")
	}
}
