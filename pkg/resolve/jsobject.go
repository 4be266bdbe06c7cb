package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// literalEvaluator turns JavaScript literal expressions into Go values:
// objects become map[string]any, arrays []any, strings string, numbers
// float64 and booleans bool. Anything else evaluates to nil.
//
// Configuration files in this ecosystem are JSON with comments and trailing
// commas, or small scripts that assign an object literal; parsing them with
// the JavaScript grammar covers both.
type literalEvaluator struct {
	src []byte
	// dir is the value of __dirname for path.resolve/path.join calls.
	dir string
}

// parseScript parses src as JavaScript. Sources that begin with "{" are
// wrapped in parentheses so that the object is an expression, not a block.
func parseScript(src []byte) (*sitter.Tree, []byte, error) {
	if body := skipTrivia(string(src)); strings.HasPrefix(body, "{") {
		src = []byte("(" + body + "\n)")
	}
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, nil, err
	}
	if tree == nil {
		return nil, nil, fmt.Errorf("parser returned no tree")
	}
	return tree, src, nil
}

// skipTrivia drops leading whitespace and comments.
func skipTrivia(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n\ufeff")
		switch {
		case strings.HasPrefix(s, "//"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			return s
		}
	}
}

// findObject returns the first object literal node, in source order, for
// which match returns true. match receives the object and its parent.
func findObject(root *sitter.Node, match func(obj, parent *sitter.Node) bool) *sitter.Node {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type() == "object" {
			if parent := n.Parent(); parent != nil && match(n, parent) {
				return n
			}
		}
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			if c := n.NamedChild(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return nil
}

func (e *literalEvaluator) eval(n *sitter.Node) any {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "object":
		out := make(map[string]any)
		for i := 0; i < int(n.NamedChildCount()); i++ {
			pair := n.NamedChild(i)
			if pair.Type() != "pair" {
				continue
			}
			key := e.key(pair.ChildByFieldName("key"))
			if key == "" {
				continue
			}
			out[key] = e.eval(pair.ChildByFieldName("value"))
		}
		return out
	case "array":
		var out []any
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() != "comment" {
				out = append(out, e.eval(c))
			}
		}
		return out
	case "string":
		return unquote(n.Content(e.src))
	case "template_string":
		return strings.Trim(n.Content(e.src), "`")
	case "number":
		f, err := strconv.ParseFloat(n.Content(e.src), 64)
		if err != nil {
			return nil
		}
		return f
	case "true":
		return true
	case "false":
		return false
	case "parenthesized_expression":
		return e.eval(n.NamedChild(0))
	case "identifier":
		if n.Content(e.src) == "__dirname" && e.dir != "" {
			return e.dir
		}
	case "call_expression":
		return e.evalPathCall(n)
	case "binary_expression":
		// __dirname + '/src'
		left, lok := e.eval(n.ChildByFieldName("left")).(string)
		right, rok := e.eval(n.ChildByFieldName("right")).(string)
		if lok && rok {
			return left + right
		}
	}
	return nil
}

// evalPathCall evaluates path.resolve(...) and path.join(...) when every
// argument evaluates to a string.
func (e *literalEvaluator) evalPathCall(n *sitter.Node) any {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil || fn.Type() != "member_expression" {
		return nil
	}
	obj := fn.ChildByFieldName("object")
	prop := fn.ChildByFieldName("property")
	if obj == nil || prop == nil || obj.Content(e.src) != "path" {
		return nil
	}
	var parts []string
	for i := 0; i < int(args.NamedChildCount()); i++ {
		s, ok := e.eval(args.NamedChild(i)).(string)
		if !ok {
			return nil
		}
		parts = append(parts, s)
	}
	switch prop.Content(e.src) {
	case "join":
		return filepath.Join(parts...)
	case "resolve":
		out := e.dir
		for _, p := range parts {
			if filepath.IsAbs(p) {
				out = p
			} else {
				out = filepath.Join(out, p)
			}
		}
		return filepath.Clean(out)
	}
	return nil
}

func (e *literalEvaluator) key(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "property_identifier", "identifier", "number":
		return n.Content(e.src)
	case "string":
		return unquote(n.Content(e.src))
	}
	return ""
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		if s[0] == '"' {
			if u, err := strconv.Unquote(s); err == nil {
				return u
			}
		}
		return s[1 : len(s)-1]
	}
	return s
}

// lookup walks nested maps along keys.
func lookup(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

// stringMap converts a map of strings, or of string arrays, into a map of
// ordered string candidates.
func stringMap(v any) map[string][]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, raw := range m {
		switch val := raw.(type) {
		case string:
			out[k] = []string{val}
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					out[k] = append(out[k], s)
				}
			}
		}
	}
	return out
}
