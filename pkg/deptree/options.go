package deptree

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/deptree/deptree/pkg/extract"
	"github.com/deptree/deptree/pkg/fsutil"
	"github.com/deptree/deptree/pkg/graph"
	"github.com/deptree/deptree/pkg/resolve"
)

// FilterFunc decides whether a resolved dependency is kept. It receives the
// resolved absolute path and the file that imported it. Rejected files
// appear nowhere in the result.
type FilterFunc func(path, containingFile string) bool

// Options configures one dependency walk.
type Options struct {
	// Filename is the entry file. Required.
	Filename string
	// Directory is the resolution base directory. Required unless Root is set.
	Directory string
	// Root is the legacy name for Directory.
	Root string

	// Visited memoizes per-file subtrees. Entries present before the walk
	// are returned verbatim and their files are never read. Nil means a
	// fresh cache per call.
	Visited *Visited
	// NonExistent collects unresolved specifiers per file. Nil means a
	// fresh collector per call.
	NonExistent *NonExistent

	// Filter is consulted for every resolved dependency. Nil keeps all.
	Filter FilterFunc
	// Exclude drops dependencies whose path relative to Directory, or whose
	// base name, matches one of these filepath.Match patterns.
	Exclude []string
	// ExcludeNodeModules drops every dependency inside node_modules.
	ExcludeNodeModules bool

	// Extractor is forwarded verbatim to the per-format extractors.
	Extractor extract.Config

	// RequireConfig is a RequireJS configuration file.
	RequireConfig string
	// AliasConfig is a bundler alias configuration file.
	AliasConfig string
	// TSConfig is a tsconfig.json file.
	TSConfig string
	// NodeModulesEntryField picks the package.json entry field ("main",
	// "module", "browser"). Empty means "main".
	NodeModulesEntryField string

	// IncludeDynamicImports makes import() targets ordinary dependencies.
	// By default they are extracted but neither recorded nor followed.
	IncludeDynamicImports bool

	// FS is the filesystem to read. Nil means the host filesystem.
	FS fsutil.FS
	// Logger receives per-file diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Clone returns a copy of o that can be modified without affecting o. The
// Visited and NonExistent caches stay shared since sharing them is their
// purpose.
func (o Options) Clone() Options {
	c := o
	c.Exclude = append([]string(nil), o.Exclude...)
	return c
}

// normalize validates o and fills in defaults. Root is folded into
// Directory here and nowhere else.
func (o Options) normalize() (Options, error) {
	n := o.Clone()
	if strings.TrimSpace(n.Filename) == "" {
		return Options{}, &ConfigurationError{Field: "filename", Reason: "entry file is required"}
	}
	if n.Directory == "" {
		n.Directory = n.Root
	}
	n.Root = ""
	if strings.TrimSpace(n.Directory) == "" {
		return Options{}, &ConfigurationError{Field: "directory", Reason: "resolution directory is required"}
	}

	var err error
	if n.Filename, err = filepath.Abs(n.Filename); err != nil {
		return Options{}, &ConfigurationError{Field: "filename", Reason: err.Error()}
	}
	if n.Directory, err = filepath.Abs(n.Directory); err != nil {
		return Options{}, &ConfigurationError{Field: "directory", Reason: err.Error()}
	}
	for _, p := range []*string{&n.RequireConfig, &n.AliasConfig, &n.TSConfig} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(n.Directory, *p)
		}
	}

	for _, pattern := range n.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return Options{}, &ConfigurationError{Field: "filter", Reason: fmt.Sprintf("bad exclude pattern %q: %v", pattern, err)}
		}
	}

	if n.Visited == nil {
		n.Visited = NewVisited()
	}
	if n.NonExistent == nil {
		n.NonExistent = NewNonExistent()
	}
	if n.FS == nil {
		n.FS = fsutil.NewOS(fsutil.DefaultCacheSize)
	}
	if n.Logger == nil {
		n.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return n, nil
}

// Fingerprint identifies the options that shape a walk's subtrees:
// resolution inputs, exclusions and extractor settings. Subtrees cached
// under one fingerprint are only valid for walks with the same one. Filter
// is a function and cannot be fingerprinted; callers that set it must keep
// their caches apart themselves.
func (o Options) Fingerprint() string {
	dir := o.Directory
	if dir == "" {
		dir = o.Root
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	configPath := func(p string) string {
		if p != "" && !filepath.IsAbs(p) {
			return filepath.Join(dir, p)
		}
		return p
	}
	exclude := append([]string(nil), o.Exclude...)
	sort.Strings(exclude)
	entryField := o.NodeModulesEntryField
	if entryField == "" {
		entryField = "main"
	}

	data, _ := json.Marshal(struct {
		Directory             string
		Exclude               []string
		ExcludeNodeModules    bool
		Extractor             extract.Config
		RequireConfig         string
		AliasConfig           string
		TSConfig              string
		NodeModulesEntryField string
		IncludeDynamicImports bool
	}{
		Directory:             dir,
		Exclude:               exclude,
		ExcludeNodeModules:    o.ExcludeNodeModules,
		Extractor:             o.Extractor,
		RequireConfig:         configPath(o.RequireConfig),
		AliasConfig:           configPath(o.AliasConfig),
		TSConfig:              configPath(o.TSConfig),
		NodeModulesEntryField: entryField,
		IncludeDynamicImports: o.IncludeDynamicImports,
	})
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func (o Options) resolverConfig() resolve.Config {
	return resolve.Config{
		Directory:             o.Directory,
		RequireConfig:         o.RequireConfig,
		AliasConfig:           o.AliasConfig,
		TSConfig:              o.TSConfig,
		NodeModulesEntryField: o.NodeModulesEntryField,
	}
}

// keep reports whether the dependency path imported by from survives the
// exclude patterns and the caller's filter.
func (o Options) keep(path, from string) bool {
	if o.ExcludeNodeModules && graph.IsExternalPath(path) {
		return false
	}
	if len(o.Exclude) > 0 {
		rel, err := filepath.Rel(o.Directory, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		base := filepath.Base(path)
		for _, pattern := range o.Exclude {
			if ok, _ := filepath.Match(pattern, rel); ok {
				return false
			}
			if ok, _ := filepath.Match(pattern, base); ok {
				return false
			}
		}
	}
	return o.Filter == nil || o.Filter(path, from)
}
