package deptree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNonExistentAdd(t *testing.T) {
	n := NewNonExistent()
	n.Add("/p/a.js")
	assert.Equal(t, 0, n.Len())

	n.Add("/p/a.js", "./x", "./y", "./x")
	n.Add("/p/a.js", "./y", "./z")
	assert.Equal(t, []string{"./x", "./y", "./z"}, n.Get("/p/a.js"))

	got := n.Map()
	got["/p/a.js"][0] = "mutated"
	assert.Equal(t, "./x", n.Get("/p/a.js")[0])
}

func TestVisitedSeedAndCommit(t *testing.T) {
	v := NewVisited()
	v.Seed("/p/b.js", nil)
	v.SeedList("/p/a.js", []string{"/p/b.js"})

	got, ok := v.Get("/p/b.js")
	assert.True(t, ok)
	assert.NotNil(t, got)

	// Committing never overwrites a seeded entry.
	v.commit("/p/a.js", Tree{"/p/c.js": Tree{}})
	a, _ := v.Get("/p/a.js")
	assert.Equal(t, Tree{"/p/b.js": Tree{}}, a)
	assert.Equal(t, []string{"/p/a.js", "/p/b.js"}, v.Files())
	assert.Empty(t, v.Committed())

	v.commit("/p/c.js", Tree{})
	assert.Equal(t, []string{"/p/c.js"}, v.Committed())

	v.Seed("/p/c.js", Tree{"/p/d.js": Tree{}})
	assert.Empty(t, v.Committed(), "seeding replaces a committed entry")
}

func TestOptionsFingerprint(t *testing.T) {
	base := Options{Filename: "/p/a.js", Directory: "/p"}

	same := base
	same.Filename = "/p/other.js"
	same.NodeModulesEntryField = "main"
	assert.Equal(t, base.Fingerprint(), same.Fingerprint(), "entry file and defaults do not matter")

	legacy := Options{Filename: "/p/a.js", Root: "/p"}
	assert.Equal(t, base.Fingerprint(), legacy.Fingerprint())

	reordered := base
	reordered.Exclude = []string{"*.spec.js", "vendor/*"}
	swapped := base
	swapped.Exclude = []string{"vendor/*", "*.spec.js"}
	assert.Equal(t, reordered.Fingerprint(), swapped.Fingerprint())

	relConfig := base
	relConfig.TSConfig = "tsconfig.json"
	absConfig := base
	absConfig.TSConfig = "/p/tsconfig.json"
	assert.Equal(t, relConfig.Fingerprint(), absConfig.Fingerprint())

	variants := map[string]func(o *Options){
		"exclude node_modules": func(o *Options) { o.ExcludeNodeModules = true },
		"dynamic imports":      func(o *Options) { o.IncludeDynamicImports = true },
		"exclude":              func(o *Options) { o.Exclude = []string{"*.css"} },
		"require config":       func(o *Options) { o.RequireConfig = "/p/config.js" },
		"alias config":         func(o *Options) { o.AliasConfig = "/p/alias.yaml" },
		"tsconfig":             func(o *Options) { o.TSConfig = "/p/tsconfig.json" },
		"entry field":          func(o *Options) { o.NodeModulesEntryField = "module" },
		"extractor":            func(o *Options) { o.Extractor.TS.SkipTypeImports = true },
		"directory":            func(o *Options) { o.Directory = "/q" },
	}
	seen := map[string]string{base.Fingerprint(): "base"}
	for name, mutate := range variants {
		o := base.Clone()
		mutate(&o)
		fp := o.Fingerprint()
		if prev, dup := seen[fp]; dup {
			t.Errorf("%s has the same fingerprint as %s", name, prev)
		}
		seen[fp] = name
	}
}
