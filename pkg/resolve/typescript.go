package resolve

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/deptree/deptree/pkg/fsutil"
)

// tsConfig holds the module resolution settings of a tsconfig.json.
type tsConfig struct {
	// baseURL is the absolute "compilerOptions.baseUrl", or empty.
	baseURL string
	// pathsBase anchors "paths" targets: baseURL when set, otherwise the
	// directory of the tsconfig that declared them.
	pathsBase string
	paths     []tsPath
}

// tsPath is one "paths" entry. The pattern and each target may contain a
// single "*" wildcard.
type tsPath struct {
	pattern string
	targets []string
}

const maxExtendsDepth = 16

func loadTSConfig(fsys fsutil.FS, path string) (*tsConfig, error) {
	return loadTSConfigDepth(fsys, path, 0)
}

func loadTSConfigDepth(fsys fsutil.FS, path string, depth int) (*tsConfig, error) {
	if depth > maxExtendsDepth {
		return nil, fmt.Errorf("tsconfig extends chain too deep at %s", path)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tsconfig: %w", err)
	}
	tree, src, err := parseScript(data)
	if err != nil {
		return nil, fmt.Errorf("parsing tsconfig: %w", err)
	}
	defer tree.Close()

	obj := findObject(tree.RootNode(), func(_, parent *sitter.Node) bool {
		return parent.Type() == "parenthesized_expression"
	})
	if obj == nil {
		return nil, fmt.Errorf("no configuration object in %s", path)
	}
	dir := filepath.Dir(path)
	value := (&literalEvaluator{src: src}).eval(obj)

	cfg := &tsConfig{}
	if ext, ok := lookup(value, "extends").(string); ok && isExplicitPath(ext) {
		parentPath := absJoin(dir, ext)
		if !strings.HasSuffix(parentPath, ".json") && !fsys.Exists(parentPath) {
			parentPath += ".json"
		}
		if parent, err := loadTSConfigDepth(fsys, parentPath, depth+1); err == nil {
			*cfg = *parent
		}
	}

	if base, ok := lookup(value, "compilerOptions", "baseUrl").(string); ok {
		cfg.baseURL = absJoin(dir, base)
		cfg.pathsBase = cfg.baseURL
	}
	if raw := lookup(value, "compilerOptions", "paths"); raw != nil {
		cfg.paths = nil
		for pattern, targets := range stringMap(raw) {
			if strings.Count(pattern, "*") > 1 {
				continue
			}
			cfg.paths = append(cfg.paths, tsPath{pattern: pattern, targets: targets})
		}
		sort.Slice(cfg.paths, func(i, j int) bool { return cfg.paths[i].pattern < cfg.paths[j].pattern })
		if cfg.baseURL == "" {
			cfg.pathsBase = dir
		}
	}
	return cfg, nil
}

// candidates returns the locations "paths" maps spec to. An exact pattern
// wins over wildcards, and among wildcards the longest prefix wins.
func (c *tsConfig) candidates(spec string) []string {
	var (
		best     *tsPath
		bestStar string
		bestLen  = -1
	)
	for i := range c.paths {
		p := &c.paths[i]
		prefix, suffix, hasStar := strings.Cut(p.pattern, "*")
		if !hasStar {
			if p.pattern == spec {
				best, bestStar = p, ""
				break
			}
			continue
		}
		if len(spec) >= len(prefix)+len(suffix) && strings.HasPrefix(spec, prefix) && strings.HasSuffix(spec, suffix) && len(prefix) > bestLen {
			best, bestLen = p, len(prefix)
			bestStar = spec[len(prefix) : len(spec)-len(suffix)]
		}
	}
	if best == nil {
		return nil
	}
	out := make([]string, 0, len(best.targets))
	for _, target := range best.targets {
		out = append(out, absJoin(c.pathsBase, strings.Replace(target, "*", bestStar, 1)))
	}
	return out
}

// resolveTypeScript resolves with tsconfig paths and baseUrl first and then
// the Node algorithm with TypeScript extensions.
func (r *Resolver) resolveTypeScript(spec, from string) Result {
	if isBuiltin(spec) {
		return excluded()
	}
	entry := r.cfg.NodeModulesEntryField

	if r.ts != nil && !isExplicitPath(spec) {
		for _, candidate := range r.ts.candidates(spec) {
			if path, ok := r.loadAsFileOrDirectory(candidate, tsExtensions, entry); ok {
				return found(path)
			}
		}
		if r.ts.baseURL != "" {
			if path, ok := r.loadAsFileOrDirectory(absJoin(r.ts.baseURL, spec), tsExtensions, entry); ok {
				return found(path)
			}
		}
	}

	res := r.resolveNode(spec, from, tsExtensions, entry)
	if res.Status == NotFound && isExplicitPath(spec) {
		// ESM-style TypeScript imports name the emitted .js file.
		for _, js := range []string{".js", ".jsx", ".mjs"} {
			if stem, ok := strings.CutSuffix(spec, js); ok {
				if path, ok := r.loadAsFile(absFrom(stem, from), tsExtensions); ok {
					return found(path)
				}
			}
		}
	}
	return res
}
