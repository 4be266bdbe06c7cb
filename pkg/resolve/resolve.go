// Package resolve maps raw import specifiers to absolute file paths using
// the resolution rules of the module system of the file that contains them.
package resolve

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deptree/deptree/pkg/extract"
	"github.com/deptree/deptree/pkg/fsutil"
)

// Status is the outcome of resolving one specifier.
type Status uint8

const (
	// NotFound means no file exists for the specifier.
	NotFound Status = iota
	// Found means Result.Path names an existing file.
	Found
	// Excluded means the specifier names something with no on-disk file
	// worth tracking, such as a Node core module.
	Excluded
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Excluded:
		return "excluded"
	default:
		return "not-found"
	}
}

// Result is the resolution of a specifier.
type Result struct {
	Status Status
	// Path is the absolute, cleaned path of the target when Status is Found.
	Path string
	// Leaf marks a target that is recorded as a dependency but never
	// expanded, such as a plain CSS file imported from a stylesheet.
	Leaf bool
}

func found(path string) Result { return Result{Status: Found, Path: filepath.Clean(path)} }
func notFound() Result { return Result{Status: NotFound} }
func excluded() Result { return Result{Status: Excluded} }

// Entry fields a package.json can select as the package's main file.
const (
	EntryMain    = "main"
	EntryModule  = "module"
	EntryBrowser = "browser"
)

// Config holds the module-system configuration shared by all resolutions
// of one traversal.
type Config struct {
	// Directory is the base directory. It anchors AMD ids when no RequireJS
	// baseUrl is configured and is the last place bare specifiers are looked
	// up in.
	Directory string
	// RequireConfig is a RequireJS configuration file.
	RequireConfig string
	// AliasConfig is a bundler alias configuration file.
	AliasConfig string
	// TSConfig is a tsconfig.json file.
	TSConfig string
	// NodeModulesEntryField selects the package.json field naming a package's
	// entry file. Empty means "main".
	NodeModulesEntryField string
}

// Resolver resolves specifiers. It is safe for concurrent use as long as the
// underlying FS is.
type Resolver struct {
	fs     fsutil.FS
	cfg    Config
	logger *slog.Logger

	amd   *requireConfig
	alias *aliasConfig
	ts    *tsConfig

	packages *lru.Cache[string, *packageJSON]
}

// New creates a resolver. Configuration files that are missing or cannot be
// parsed are logged and ignored.
func New(fsys fsutil.FS, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.NodeModulesEntryField == "" {
		cfg.NodeModulesEntryField = EntryMain
	}
	packages, _ := lru.New[string, *packageJSON](1024)
	r := &Resolver{fs: fsys, cfg: cfg, logger: logger, packages: packages}

	if cfg.RequireConfig != "" {
		amd, err := loadRequireConfig(fsys, cfg.RequireConfig)
		if err != nil {
			logger.Warn("ignoring requirejs config", "file", cfg.RequireConfig, "err", err)
		} else {
			r.amd = amd
		}
	}
	if cfg.AliasConfig != "" {
		alias, err := loadAliasConfig(fsys, cfg.AliasConfig)
		if err != nil {
			logger.Warn("ignoring alias config", "file", cfg.AliasConfig, "err", err)
		} else {
			r.alias = alias
		}
	}
	if cfg.TSConfig != "" {
		ts, err := loadTSConfig(fsys, cfg.TSConfig)
		if err != nil {
			logger.Warn("ignoring tsconfig", "file", cfg.TSConfig, "err", err)
		} else {
			r.ts = ts
		}
	}
	return r
}

// Resolve resolves spec as written in the file from, whose module system is
// format.
func (r *Resolver) Resolve(spec, from string, format extract.Format) Result {
	spec = strings.TrimSpace(spec)
	if spec == "" || isURL(spec) {
		return excluded()
	}

	switch format {
	case extract.FormatAMD:
		return r.resolveAMD(spec, from)
	case extract.FormatTypeScript:
		return r.resolveTypeScript(spec, from)
	case extract.FormatSass, extract.FormatLess, extract.FormatStylus:
		return r.resolveStylesheet(spec, from, format)
	default:
		return r.resolveNode(spec, from, jsExtensions, r.cfg.NodeModulesEntryField)
	}
}

func isURL(spec string) bool {
	for _, prefix := range []string{"http://", "https://", "data:", "//"} {
		if strings.HasPrefix(spec, prefix) {
			return true
		}
	}
	return false
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

func isExplicitPath(spec string) bool {
	return isRelative(spec) || filepath.IsAbs(spec)
}

// absFrom interprets spec relative to the directory containing from.
func absFrom(spec, from string) string {
	if filepath.IsAbs(spec) {
		return filepath.Clean(spec)
	}
	return filepath.Join(filepath.Dir(from), filepath.FromSlash(spec))
}
