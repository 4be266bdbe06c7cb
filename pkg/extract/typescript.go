package extract

import (
	"path/filepath"
	"strings"

	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

type typeScriptExtractor struct{}

func (typeScriptExtractor) Format() Format { return FormatTypeScript }

// Extract parses .tsx files with the TSX grammar and everything else with
// the plain TypeScript grammar, where `<T>expr` is a type assertion.
func (typeScriptExtractor) Extract(path string, src []byte, cfg Config) ([]Import, error) {
	lang := typescript.GetLanguage()
	if strings.EqualFold(filepath.Ext(path), ".tsx") {
		lang = tsx.GetLanguage()
	}
	tree, err := parse(path, src, lang)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return walkScript(tree.RootNode(), src, FormatTypeScript, cfg), nil
}
