package extract

import (
	"regexp"
	"strings"
)

var (
	sassImportRe   = regexp.MustCompile(`(?m)@(import|use|forward)\s+([^;\n]+)`)
	lessImportRe   = regexp.MustCompile(`(?m)@import\s*(?:\([^)]*\)\s*)?([^;\n]+)`)
	stylusImportRe = regexp.MustCompile(`(?m)@(import|require)\s+([^;\n]+)`)
)

type stylesheetExtractor struct {
	format Format
}

func (e stylesheetExtractor) Format() Format { return e.format }

func (e stylesheetExtractor) Extract(_ string, src []byte, _ Config) ([]Import, error) {
	text := stripComments(string(src))
	var out []Import
	add := func(spec string) {
		if spec == "" || isRemote(spec) {
			return
		}
		out = append(out, Import{Specifier: spec, Kind: KindStatic})
	}

	switch e.format {
	case FormatSass:
		for _, m := range sassImportRe.FindAllStringSubmatch(text, -1) {
			args := splitArgs(m[2])
			if m[1] != "import" && len(args) > 1 {
				// @use "x" as y and @forward "x" show z carry one target.
				args = args[:1]
			}
			for _, arg := range args {
				if m[1] != "import" {
					arg = firstField(arg)
				}
				if v, ok := argValue(arg, true, false); ok {
					add(v)
				}
			}
		}
	case FormatLess:
		for _, m := range lessImportRe.FindAllStringSubmatch(text, -1) {
			if v, ok := argValue(firstField(m[1]), false, true); ok {
				add(v)
			}
		}
	case FormatStylus:
		for _, m := range stylusImportRe.FindAllStringSubmatch(text, -1) {
			for _, arg := range splitArgs(m[2]) {
				if v, ok := argValue(arg, true, true); ok {
					add(v)
				}
			}
		}
	}
	return out, nil
}

// argValue returns the target of one import argument: a quoted string, a
// url() wrapper when allowURL is set, or a bare word when allowBare is set.
func argValue(arg string, allowBare, allowURL bool) (string, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", false
	}
	switch {
	case arg[0] == '"' || arg[0] == '\'':
		end := strings.IndexByte(arg[1:], arg[0])
		if end < 0 {
			return "", false
		}
		return arg[1 : end+1], true
	case strings.HasPrefix(strings.ToLower(arg), "url("):
		if !allowURL {
			return "", false
		}
		inner := arg[len("url("):]
		if end := strings.LastIndexByte(inner, ')'); end >= 0 {
			inner = inner[:end]
		}
		return stripQuotes(strings.TrimSpace(inner)), true
	case allowBare:
		return firstField(arg), true
	}
	return "", false
}

func firstField(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if s[0] == '"' || s[0] == '\'' {
		if end := strings.IndexByte(s[1:], s[0]); end >= 0 {
			return s[:end+2]
		}
		return s
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}

// splitArgs splits a comma separated import list, ignoring commas inside
// quotes and parentheses.
func splitArgs(s string) []string {
	var (
		out   []string
		quote byte
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// stripComments blanks out block and line comments outside of strings and
// parentheses, keeping newlines so line-anchored patterns still apply.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == quote || c == '\n' {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				end = len(s) - i - 2
			}
			for _, r := range s[i : i+2+end] {
				if r == '\n' {
					b.WriteByte('\n')
				}
			}
			i += end + 3
			continue
		case c == '/' && i+1 < len(s) && s[i+1] == '/' && depth == 0:
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isRemote(spec string) bool {
	lower := strings.ToLower(spec)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "//")
}
