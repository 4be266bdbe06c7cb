package resolve

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/deptree/deptree/pkg/fsutil"
)

// requireConfig is the part of a RequireJS configuration that affects
// resolution.
type requireConfig struct {
	// baseURL is absolute.
	baseURL string
	// paths maps module id prefixes to fallback locations, longest first.
	paths []pathMapping
}

type pathMapping struct {
	prefix  string
	targets []string
}

// loadRequireConfig reads a RequireJS configuration. The file may be plain
// JSON, a requirejs.config({...}) or require.config({...}) call, or a
// `var require = {...}` declaration.
func loadRequireConfig(fsys fsutil.FS, path string) (*requireConfig, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading requirejs config: %w", err)
	}
	tree, src, err := parseScript(data)
	if err != nil {
		return nil, fmt.Errorf("parsing requirejs config: %w", err)
	}
	defer tree.Close()

	obj := findObject(tree.RootNode(), func(obj, parent *sitter.Node) bool {
		return isRequireConfigObject(obj, parent, src)
	})
	if obj == nil {
		return nil, fmt.Errorf("no configuration object in %s", path)
	}

	dir := filepath.Dir(path)
	ev := &literalEvaluator{src: src, dir: dir}
	value := ev.eval(obj)

	cfg := &requireConfig{baseURL: dir}
	if base, ok := lookup(value, "baseUrl").(string); ok && base != "" {
		cfg.baseURL = absJoin(dir, base)
	}
	for prefix, targets := range stringMap(lookup(value, "paths")) {
		cfg.paths = append(cfg.paths, pathMapping{prefix: prefix, targets: targets})
	}
	sort.Slice(cfg.paths, func(i, j int) bool {
		if len(cfg.paths[i].prefix) != len(cfg.paths[j].prefix) {
			return len(cfg.paths[i].prefix) > len(cfg.paths[j].prefix)
		}
		return cfg.paths[i].prefix < cfg.paths[j].prefix
	})
	return cfg, nil
}

func isRequireConfigObject(obj, parent *sitter.Node, src []byte) bool {
	switch parent.Type() {
	case "parenthesized_expression":
		// Plain JSON wrapped by parseScript.
		grand := parent.Parent()
		return grand != nil && grand.Type() == "expression_statement"
	case "arguments":
		call := parent.Parent()
		if call == nil || call.Type() != "call_expression" {
			return false
		}
		fn := call.ChildByFieldName("function")
		if fn == nil {
			return false
		}
		switch fn.Content(src) {
		case "requirejs.config", "require.config", "requirejs":
			return parent.NamedChild(0).Equal(obj)
		}
	case "variable_declarator":
		name := parent.ChildByFieldName("name")
		return name != nil && name.Content(src) == "require"
	case "assignment_expression":
		left := parent.ChildByFieldName("left")
		return left != nil && left.Content(src) == "require"
	}
	return false
}

// candidates expands an AMD module id through the path mappings. Mapped
// locations come first, in configured fallback order, followed by the id
// under baseUrl.
func (c *requireConfig) candidates(id string) []string {
	var out []string
	for _, m := range c.paths {
		rest, ok := strings.CutPrefix(id, m.prefix)
		if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
			continue
		}
		for _, target := range m.targets {
			out = append(out, absJoin(c.baseURL, target+rest))
		}
		break
	}
	return append(out, absJoin(c.baseURL, id))
}

func absJoin(dir, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// resolveAMD resolves a RequireJS module id. Relative ids are resolved from
// the requiring file; other ids go through the configured paths and baseUrl
// and then fall back to Node resolution.
func (r *Resolver) resolveAMD(spec, from string) Result {
	id := stripPluginPrefix(spec)
	if id == "" || amdSpecial(id) {
		return excluded()
	}

	if isExplicitPath(id) {
		if path, ok := r.loadAsFile(absFrom(id, from), jsExtensions); ok {
			return found(path)
		}
		return r.resolveNode(id, from, jsExtensions, r.cfg.NodeModulesEntryField)
	}

	var bases []string
	if r.amd != nil {
		bases = r.amd.candidates(id)
	} else if r.cfg.Directory != "" {
		bases = []string{absJoin(r.cfg.Directory, id)}
	}
	for _, base := range bases {
		if path, ok := r.loadAsFile(base, jsExtensions); ok {
			return found(path)
		}
	}
	return r.resolveNode(id, from, jsExtensions, r.cfg.NodeModulesEntryField)
}

func amdSpecial(id string) bool {
	return id == "require" || id == "exports" || id == "module"
}
