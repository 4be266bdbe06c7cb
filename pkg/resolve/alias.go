package resolve

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"gopkg.in/yaml.v3"

	"github.com/deptree/deptree/pkg/fsutil"
)

// aliasConfig is the resolution section of a bundler configuration.
type aliasConfig struct {
	aliases    []alias
	modules    []string
	extensions []string
}

type alias struct {
	key    string
	exact  bool
	target string
}

// aliasFile is the YAML/JSON form of a bundler alias configuration. The
// resolve block may also be written at the top level.
type aliasFile struct {
	Resolve    *aliasSection     `yaml:"resolve"`
	Alias      map[string]string `yaml:"alias"`
	Modules    []string          `yaml:"modules"`
	Extensions []string          `yaml:"extensions"`
}

type aliasSection struct {
	Alias      map[string]string `yaml:"alias"`
	Modules    []string          `yaml:"modules"`
	Extensions []string          `yaml:"extensions"`
}

// loadAliasConfig reads a bundler alias configuration. YAML and JSON files
// are decoded directly; JavaScript files (webpack.config.js style) are
// evaluated statically for a module.exports or export default object.
func loadAliasConfig(fsys fsutil.FS, path string) (*aliasConfig, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alias config: %w", err)
	}
	dir := filepath.Dir(path)

	var section aliasSection
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".cjs", ".mjs":
		section, err = parseAliasScript(data, dir)
	default:
		var f aliasFile
		if err = yaml.Unmarshal(data, &f); err == nil {
			section = aliasSection{Alias: f.Alias, Modules: f.Modules, Extensions: f.Extensions}
			if f.Resolve != nil {
				section = *f.Resolve
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parsing alias config %s: %w", path, err)
	}
	return newAliasConfig(section, dir), nil
}

func parseAliasScript(data []byte, dir string) (aliasSection, error) {
	tree, src, err := parseScript(data)
	if err != nil {
		return aliasSection{}, err
	}
	defer tree.Close()

	obj := findObject(tree.RootNode(), func(_, parent *sitter.Node) bool {
		switch parent.Type() {
		case "assignment_expression":
			left := parent.ChildByFieldName("left")
			return left != nil && left.Content(src) == "module.exports"
		case "export_statement", "parenthesized_expression":
			return true
		}
		return false
	})
	if obj == nil {
		return aliasSection{}, fmt.Errorf("no exported configuration object")
	}
	value := (&literalEvaluator{src: src, dir: dir}).eval(obj)

	res := lookup(value, "resolve")
	if res == nil {
		res = value
	}
	var section aliasSection
	section.Alias = make(map[string]string)
	for k, targets := range stringMap(lookup(res, "alias")) {
		section.Alias[k] = targets[0]
	}
	section.Modules = stringList(lookup(res, "modules"))
	section.Extensions = stringList(lookup(res, "extensions"))
	return section, nil
}

func stringList(v any) []string {
	items, _ := v.([]any)
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func newAliasConfig(s aliasSection, dir string) *aliasConfig {
	cfg := &aliasConfig{extensions: s.Extensions}
	for key, target := range s.Alias {
		a := alias{key: key, target: target}
		if k, ok := strings.CutSuffix(key, "$"); ok {
			a.key, a.exact = k, true
		}
		if isExplicitPath(target) {
			a.target = absJoin(dir, target)
		}
		cfg.aliases = append(cfg.aliases, a)
	}
	sort.Slice(cfg.aliases, func(i, j int) bool {
		if len(cfg.aliases[i].key) != len(cfg.aliases[j].key) {
			return len(cfg.aliases[i].key) > len(cfg.aliases[j].key)
		}
		return cfg.aliases[i].key < cfg.aliases[j].key
	})
	for _, m := range s.Modules {
		// Bare names like "node_modules" are already searched hierarchically.
		if m == "node_modules" {
			continue
		}
		cfg.modules = append(cfg.modules, absJoin(dir, m))
	}
	return cfg
}

// rewrite applies the longest matching alias to spec.
func (c *aliasConfig) rewrite(spec string) (string, bool) {
	for _, a := range c.aliases {
		if spec == a.key {
			return a.target, true
		}
		if a.exact {
			continue
		}
		if rest, ok := strings.CutPrefix(spec, a.key+"/"); ok {
			return a.target + "/" + rest, true
		}
	}
	return "", false
}
