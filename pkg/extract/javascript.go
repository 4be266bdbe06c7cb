package extract

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// functionNodes are the node types that open a new function scope. Calls
// nested under one of them are lazily evaluated.
var functionNodes = map[string]bool{
	"function":                       true,
	"function_expression":            true,
	"function_declaration":           true,
	"generator_function":             true,
	"generator_function_declaration": true,
	"arrow_function":                 true,
	"method_definition":              true,
}

// amdSpecialDeps are the pseudo-dependencies a RequireJS factory can ask for.
var amdSpecialDeps = map[string]bool{
	"require": true,
	"exports": true,
	"module":  true,
}

type scriptExtractor struct {
	format Format
}

func (e scriptExtractor) Format() Format { return e.format }

func (e scriptExtractor) Extract(path string, src []byte, cfg Config) ([]Import, error) {
	tree, err := parse(path, src, javascript.GetLanguage())
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return walkScript(tree.RootNode(), src, e.format, cfg), nil
}

// extractScript parses a .js/.jsx file once, sniffs its module system and
// extracts with the matching rules.
func extractScript(path string, src []byte, cfg Config) (Format, []Import, error) {
	tree, err := parse(path, src, javascript.GetLanguage())
	if err != nil {
		return FormatCommonJS, nil, err
	}
	defer tree.Close()
	root := tree.RootNode()
	format := sniff(root, src)
	return format, walkScript(root, src, format, cfg), nil
}

func parse(path string, src []byte, lang *sitter.Language) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	if tree == nil {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("parser returned no tree")}
	}
	return tree, nil
}

// sniff classifies a parsed script: a top-level define() or require([...])
// call makes it AMD, a top-level import or export declaration makes it an ES
// module, and anything else is CommonJS.
func sniff(root *sitter.Node, src []byte) Format {
	es6 := false
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_statement", "export_statement":
			es6 = true
		case "expression_statement":
			if call := child.NamedChild(0); call != nil && isAMDCall(call, src) {
				return FormatAMD
			}
		}
	}
	if es6 {
		return FormatES6
	}
	return FormatCommonJS
}

// isAMDCall reports whether n is define(...) or require([...]).
func isAMDCall(n *sitter.Node, src []byte) bool {
	if n.Type() != "call_expression" {
		return false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return false
	}
	switch fn.Content(src) {
	case "define":
		return true
	case "require", "requirejs":
		args := n.ChildByFieldName("arguments")
		return args != nil && args.NamedChildCount() > 0 && args.NamedChild(0).Type() == "array"
	}
	return false
}

type frame struct {
	node   *sitter.Node
	nested bool
}

type scriptWalker struct {
	src     []byte
	format  Format
	cfg     Config
	imports []Import
}

// walkScript visits the tree in source order and collects specifiers
// according to the rules of format.
func walkScript(root *sitter.Node, src []byte, format Format, cfg Config) []Import {
	w := &scriptWalker{src: src, format: format, cfg: cfg}
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.node

		if !w.visit(n, f.nested) {
			continue
		}

		nested := f.nested || functionNodes[n.Type()]
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, frame{node: c, nested: nested})
			}
		}
	}
	return w.imports
}

func (w *scriptWalker) add(spec string, kind Kind) {
	if spec == "" {
		return
	}
	w.imports = append(w.imports, Import{Specifier: spec, Kind: kind})
}

// visit records any specifier n carries and reports whether its children
// should be walked.
func (w *scriptWalker) visit(n *sitter.Node, nested bool) bool {
	switch n.Type() {
	case "import_statement":
		w.visitImport(n)
		return false
	case "export_statement":
		if src := n.ChildByFieldName("source"); src != nil {
			if w.skipTypeOnly(n) {
				return false
			}
			if spec, ok := stringValue(src, w.src); ok {
				w.add(spec, KindStatic)
			}
			return false
		}
		return true
	case "call_expression":
		return w.visitCall(n, nested)
	}
	return true
}

func (w *scriptWalker) visitImport(n *sitter.Node) {
	if w.skipTypeOnly(n) {
		return
	}
	src := n.ChildByFieldName("source")
	if src == nil {
		src = findChild(n, "string")
	}
	if src == nil {
		// import x = require("y")
		if clause := findChild(n, "import_require_clause"); clause != nil {
			src = clause.ChildByFieldName("source")
			if src == nil {
				src = findChild(clause, "string")
			}
		}
	}
	if src == nil {
		return
	}
	if spec, ok := stringValue(src, w.src); ok {
		w.add(spec, KindStatic)
	}
}

func (w *scriptWalker) skipTypeOnly(n *sitter.Node) bool {
	if w.format != FormatTypeScript || !w.cfg.TS.SkipTypeImports {
		return false
	}
	second := n.Child(1)
	return second != nil && second.Type() == "type"
}

func (w *scriptWalker) visitCall(n *sitter.Node, nested bool) bool {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return true
	}

	if fn.Type() == "import" {
		if first := args.NamedChild(0); first != nil {
			if spec, ok := stringValue(first, w.src); ok {
				w.add(spec, KindDynamic)
			}
		}
		return true
	}
	if fn.Type() != "identifier" {
		return true
	}

	switch name := fn.Content(w.src); {
	case name == "require" && w.requireAllowed(nested):
		first := args.NamedChild(0)
		if first == nil {
			return true
		}
		if first.Type() == "array" && w.format == FormatAMD {
			w.addArray(first)
			return true
		}
		if spec, ok := stringValue(first, w.src); ok {
			w.add(spec, KindRequire)
		}
	case name == "requirejs" && w.format == FormatAMD && w.requireAllowed(nested):
		if first := args.NamedChild(0); first != nil && first.Type() == "array" {
			w.addArray(first)
		}
	case name == "define" && w.format == FormatAMD:
		for i := 0; i < int(args.NamedChildCount()); i++ {
			if arg := args.NamedChild(i); arg.Type() == "array" {
				w.addArray(arg)
				break
			}
		}
	}
	return true
}

// requireAllowed reports whether a require() call counts in the current
// format and position.
func (w *scriptWalker) requireAllowed(nested bool) bool {
	switch w.format {
	case FormatCommonJS:
		return true
	case FormatAMD:
		return !nested || !w.cfg.AMD.SkipLazyLoaded
	case FormatES6:
		return w.cfg.ES6.MixedImports
	case FormatTypeScript:
		return w.cfg.TS.MixedImports
	}
	return false
}

func (w *scriptWalker) addArray(arr *sitter.Node) {
	for i := 0; i < int(arr.NamedChildCount()); i++ {
		spec, ok := stringValue(arr.NamedChild(i), w.src)
		if !ok || amdSpecialDeps[spec] {
			continue
		}
		w.add(spec, KindStatic)
	}
}

func findChild(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == typ {
			return c
		}
	}
	return nil
}

// stringValue returns the value of a string literal or a template literal
// without substitutions.
func stringValue(n *sitter.Node, src []byte) (string, bool) {
	switch n.Type() {
	case "string":
		return stripQuotes(n.Content(src)), true
	case "template_string":
		if findChild(n, "template_substitution") != nil {
			return "", false
		}
		return strings.Trim(n.Content(src), "`"), true
	}
	return "", false
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Detect reports the module system of a file, inspecting the source of
// .js and .jsx files to tell CommonJS, AMD and ES modules apart.
func Detect(path string, src []byte) Format {
	f := formatFromExtension(path)
	if f != formatScript {
		return f
	}
	tree, err := parse(path, src, javascript.GetLanguage())
	if err != nil {
		return FormatCommonJS
	}
	defer tree.Close()
	return sniff(tree.RootNode(), src)
}
