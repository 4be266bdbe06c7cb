// Package extract turns a source file's contents into the raw import
// specifiers it references. Implementations handle the syntax of each module
// system: CommonJS, AMD, ES modules, TypeScript and the Sass, Less and
// Stylus stylesheet dialects.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies the module system a file is written in.
type Format string

const (
	FormatUnknown    Format = ""
	FormatCommonJS   Format = "commonjs"
	FormatAMD        Format = "amd"
	FormatES6        Format = "es6"
	FormatTypeScript Format = "ts"
	FormatSass       Format = "sass"
	FormatLess       Format = "less"
	FormatStylus     Format = "stylus"
)

// IsStylesheet reports whether f is one of the stylesheet dialects.
func (f Format) IsStylesheet() bool {
	return f == FormatSass || f == FormatLess || f == FormatStylus
}

// Kind classifies how a specifier was referenced.
type Kind uint8

const (
	// KindStatic is an import declaration, re-export, AMD dependency array
	// entry or stylesheet import.
	KindStatic Kind = iota
	// KindRequire is a require() call.
	KindRequire
	// KindDynamic is a deferred import() expression.
	KindDynamic
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindRequire:
		return "require"
	case KindDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Import is a single raw specifier found in a file.
type Import struct {
	Specifier string `json:"specifier"`
	Kind      Kind   `json:"kind"`
}

// Config is the per-module-system option bag forwarded verbatim to the
// extractor chosen for a file.
type Config struct {
	AMD AMDConfig `yaml:"amd" json:"amd"`
	ES6 ES6Config `yaml:"es6" json:"es6"`
	TS  TSConfig  `yaml:"ts" json:"ts"`
}

// AMDConfig controls AMD extraction.
type AMDConfig struct {
	// SkipLazyLoaded omits require() calls nested inside a module factory.
	SkipLazyLoaded bool `yaml:"skip_lazy_loaded" json:"skipLazyLoaded"`
}

// ES6Config controls ES module extraction.
type ES6Config struct {
	// MixedImports also reports require() calls found in ES modules.
	MixedImports bool `yaml:"mixed_imports" json:"mixedImports"`
}

// TSConfig controls TypeScript extraction.
type TSConfig struct {
	// MixedImports also reports require() calls.
	MixedImports bool `yaml:"mixed_imports" json:"mixedImports"`
	// SkipTypeImports omits `import type` and `export type ... from`.
	SkipTypeImports bool `yaml:"skip_type_imports" json:"skipTypeImports"`
}

// Extractor extracts raw specifiers from one format.
type Extractor interface {
	// Format returns the module system this extractor understands.
	Format() Format
	// Extract returns the specifiers in src in order of appearance.
	Extract(path string, src []byte, cfg Config) ([]Import, error)
}

// ExtractionError reports a file whose contents could not be parsed at all.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// For returns the extractor for a format, or nil if the format has none.
func For(f Format) Extractor {
	switch f {
	case FormatCommonJS, FormatAMD, FormatES6:
		return scriptExtractor{format: f}
	case FormatTypeScript:
		return typeScriptExtractor{}
	case FormatSass, FormatLess, FormatStylus:
		return stylesheetExtractor{format: f}
	default:
		return nil
	}
}

// Extract detects the format of path and returns its specifiers. Files of
// unknown type yield no specifiers and no error.
func Extract(path string, src []byte, cfg Config) ([]Import, error) {
	_, imports, err := Analyze(path, src, cfg)
	return imports, err
}

// Analyze is Extract that also reports the detected format, so callers can
// pick matching resolution rules without parsing the file twice.
func Analyze(path string, src []byte, cfg Config) (Format, []Import, error) {
	switch f := formatFromExtension(path); f {
	case formatScript:
		return extractScript(path, src, cfg)
	case FormatUnknown:
		return FormatUnknown, nil, nil
	default:
		imports, err := For(f).Extract(path, src, cfg)
		return f, imports, err
	}
}

// Specifiers returns the raw specifier strings of imports, preserving order
// and duplicates.
func Specifiers(imports []Import) []string {
	out := make([]string, 0, len(imports))
	for _, imp := range imports {
		out = append(out, imp.Specifier)
	}
	return out
}

// formatScript marks extensions whose module system needs content sniffing.
const formatScript Format = "script"

func formatFromExtension(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	switch ext := filepath.Ext(name); ext {
	case ".ts", ".tsx", ".mts", ".cts":
		return FormatTypeScript
	case ".scss", ".sass":
		return FormatSass
	case ".less":
		return FormatLess
	case ".styl":
		return FormatStylus
	case ".mjs":
		return FormatES6
	case ".cjs":
		return FormatCommonJS
	case ".js", ".jsx":
		return formatScript
	default:
		return FormatUnknown
	}
}
