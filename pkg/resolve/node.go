package resolve

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

var (
	jsExtensions = []string{".js", ".jsx", ".mjs", ".cjs", ".json"}
	tsExtensions = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx", ".json"}
)

type packageJSON struct {
	fields map[string]any
}

// field returns the string value of a top-level package.json key.
func (p *packageJSON) field(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	s, ok := p.fields[name].(string)
	return s, ok && s != ""
}

// resolveNode implements the Node.js module resolution algorithm with the
// given extension probing order.
func (r *Resolver) resolveNode(spec, from string, exts []string, entryField string) Result {
	if isBuiltin(spec) {
		return excluded()
	}
	if r.alias != nil {
		if target, ok := r.alias.rewrite(spec); ok {
			spec = target
		}
	}

	if isExplicitPath(spec) {
		if path, ok := r.loadAsFileOrDirectory(absFrom(spec, from), exts, entryField); ok {
			return found(path)
		}
		return notFound()
	}

	if path, ok := r.loadNodeModules(spec, filepath.Dir(from), exts, entryField); ok {
		return found(path)
	}
	for _, dir := range r.searchDirs() {
		if path, ok := r.loadAsFileOrDirectory(filepath.Join(dir, filepath.FromSlash(spec)), exts, entryField); ok {
			return found(path)
		}
	}
	return notFound()
}

// searchDirs are the extra roots bare specifiers are looked up in after
// node_modules: bundler module directories, then the base directory.
func (r *Resolver) searchDirs() []string {
	var dirs []string
	if r.alias != nil {
		dirs = append(dirs, r.alias.modules...)
	}
	if r.cfg.Directory != "" {
		dirs = append(dirs, r.cfg.Directory)
	}
	return dirs
}

func (r *Resolver) extensions(exts []string) []string {
	if r.alias != nil && len(r.alias.extensions) > 0 {
		return r.alias.extensions
	}
	return exts
}

func (r *Resolver) loadAsFile(path string, exts []string) (string, bool) {
	if r.fs.Exists(path) {
		return path, true
	}
	for _, ext := range r.extensions(exts) {
		if extPath := path + ext; r.fs.Exists(extPath) {
			return extPath, true
		}
	}
	return "", false
}

func (r *Resolver) loadAsIndex(path string, exts []string) (string, bool) {
	for _, ext := range r.extensions(exts) {
		if indexPath := filepath.Join(path, "index"+ext); r.fs.Exists(indexPath) {
			return indexPath, true
		}
	}
	return "", false
}

func (r *Resolver) loadAsFileOrDirectory(path string, exts []string, entryField string) (string, bool) {
	if absolute, ok := r.loadAsFile(path, exts); ok {
		return absolute, true
	}
	if !r.fs.IsDir(path) {
		return "", false
	}

	if pkg := r.readPackageJSON(filepath.Join(path, "package.json")); pkg != nil {
		for _, name := range entryFields(entryField, exts) {
			main, ok := pkg.field(name)
			if !ok {
				continue
			}
			mainPath := filepath.Join(path, filepath.FromSlash(main))
			if absolute, ok := r.loadAsFile(mainPath, exts); ok {
				return absolute, true
			}
			if absolute, ok := r.loadAsIndex(mainPath, exts); ok {
				return absolute, true
			}
		}
	}
	return r.loadAsIndex(path, exts)
}

// entryFields lists package.json keys in the order they are tried. The
// configured field wins, "main" is the fallback, and TypeScript resolution
// also accepts type declaration entries.
func entryFields(preferred string, exts []string) []string {
	fields := []string{preferred}
	if preferred != EntryMain {
		fields = append(fields, EntryMain)
	}
	if len(exts) > 0 && exts[0] == ".ts" {
		fields = append(fields, "types", "typings")
	}
	return fields
}

func (r *Resolver) loadNodeModules(spec, start string, exts []string, entryField string) (string, bool) {
	for {
		// Skip "node_modules" folders
		if filepath.Base(start) != "node_modules" {
			if absolute, ok := r.loadAsFileOrDirectory(filepath.Join(start, "node_modules", filepath.FromSlash(spec)), exts, entryField); ok {
				return absolute, true
			}
		}

		// Go to the parent directory, stopping at the file system root
		dir := filepath.Dir(start)
		if start == dir {
			break
		}
		start = dir
	}
	return "", false
}

func (r *Resolver) readPackageJSON(path string) *packageJSON {
	if pkg, ok := r.packages.Get(path); ok {
		return pkg
	}
	var pkg *packageJSON
	if data, err := r.fs.ReadFile(path); err == nil {
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			r.logger.Debug("unparsable package.json", "file", path, "err", err)
		} else {
			pkg = &packageJSON{fields: fields}
		}
	}
	r.packages.Add(path, pkg)
	return pkg
}

// stripPluginPrefix removes a loader plugin prefix such as "text!" or
// "css!" from an AMD module id.
func stripPluginPrefix(spec string) string {
	if i := strings.LastIndexByte(spec, '!'); i >= 0 {
		return spec[i+1:]
	}
	return spec
}
