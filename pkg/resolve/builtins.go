package resolve

import "strings"

// nodeBuiltinModules are the Node.js core modules. They have no file on disk
// and are never reported as dependencies.
var nodeBuiltinModules = map[string]bool{
	"assert":              true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"repl":                true,
	"stream":              true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// isBuiltin reports whether spec names a core module, with or without the
// "node:" scheme and including subpaths like "fs/promises".
func isBuiltin(spec string) bool {
	if rest, ok := strings.CutPrefix(spec, "node:"); ok {
		return rest != ""
	}
	name, _, _ := strings.Cut(spec, "/")
	return nodeBuiltinModules[name]
}
