package resolve

import (
	"path/filepath"
	"strings"

	"github.com/deptree/deptree/pkg/extract"
)

// dialectExtensions are the extensions tried, in order, for an
// extensionless stylesheet import.
var dialectExtensions = map[extract.Format][]string{
	extract.FormatSass:   {".scss", ".sass", ".css"},
	extract.FormatLess:   {".less", ".css"},
	extract.FormatStylus: {".styl", ".css"},
}

// expandable are the stylesheet extensions that may import further files.
var expandable = map[string]bool{
	".scss": true,
	".sass": true,
	".less": true,
	".styl": true,
}

// resolveStylesheet resolves an @import, @use, @forward or @require target.
// Partials (_name) are preferred over the literal name, and a "~" prefix
// looks the file up in node_modules. Targets that are not themselves
// stylesheets of an importing dialect are leaves.
func (r *Resolver) resolveStylesheet(spec, from string, format extract.Format) Result {
	if strings.HasPrefix(spec, "sass:") {
		return excluded()
	}

	var roots []string
	if rest, ok := strings.CutPrefix(spec, "~"); ok {
		spec = rest
		for dir := filepath.Dir(from); ; {
			roots = append(roots, filepath.Join(dir, "node_modules"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	} else if filepath.IsAbs(spec) {
		roots = []string{""}
	} else {
		roots = []string{filepath.Dir(from)}
		if r.cfg.Directory != "" && r.cfg.Directory != filepath.Dir(from) {
			roots = append(roots, r.cfg.Directory)
		}
	}

	exts := dialectExtensions[format]
	for _, root := range roots {
		base := filepath.Join(root, filepath.FromSlash(spec))
		if path, ok := r.loadStylesheet(base, exts); ok {
			return stylesheetResult(path)
		}
	}
	return notFound()
}

func (r *Resolver) loadStylesheet(base string, exts []string) (string, bool) {
	dir, name := filepath.Split(base)
	var candidates []string
	if filepath.Ext(name) != "" {
		if !strings.HasPrefix(name, "_") {
			candidates = append(candidates, filepath.Join(dir, "_"+name))
		}
		candidates = append(candidates, base)
	}
	for _, ext := range exts {
		if !strings.HasPrefix(name, "_") {
			candidates = append(candidates, filepath.Join(dir, "_"+name+ext))
		}
		candidates = append(candidates, base+ext)
	}
	for _, ext := range exts {
		candidates = append(candidates,
			filepath.Join(base, "_index"+ext),
			filepath.Join(base, "index"+ext))
	}
	for _, c := range candidates {
		if r.fs.Exists(c) {
			return c, true
		}
	}
	return "", false
}

func stylesheetResult(path string) Result {
	res := found(path)
	res.Leaf = !expandable[strings.ToLower(filepath.Ext(path))]
	return res
}
