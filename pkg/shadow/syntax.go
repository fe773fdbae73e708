package shadow

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// maxSyntaxErrors caps the errors reported per block.
const maxSyntaxErrors = 3

var languageLabels = map[string]string{
	LangPython:     "Python",
	LangBash:       "Bash",
	LangJavaScript: "JavaScript",
	LangTypeScript: "TypeScript",
}

func treeSitterLanguage(lang string) *sitter.Language {
	switch lang {
	case LangPython:
		return python.GetLanguage()
	case LangBash:
		return bash.GetLanguage()
	case LangJavaScript:
		return javascript.GetLanguage()
	case LangTypeScript:
		return typescript.GetLanguage()
	default:
		return nil
	}
}

// syntaxErrors parses code as lang and describes its ERROR and MISSING
// nodes. Languages without a grammar are not checked.
func syntaxErrors(ctx context.Context, lang, code string) ([]string, error) {
	tsLang := treeSitterLanguage(lang)
	if tsLang == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tsLang)

	content := []byte(code)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var errs []string
	collectSyntaxErrors(tree.RootNode(), content, languageLabels[lang], &errs, 0)
	return errs, nil
}

func collectSyntaxErrors(node *sitter.Node, content []byte, label string, errs *[]string, depth int) {
	if depth > 1000 || len(*errs) >= maxSyntaxErrors {
		return
	}

	if node.IsError() || node.IsMissing() {
		line := int(node.StartPoint().Row) + 1
		msg := "unexpected input"
		if node.IsMissing() {
			msg = fmt.Sprintf("missing %q", node.Type())
		} else if snippet := errorSnippet(node, content); snippet != "" {
			msg = fmt.Sprintf("unexpected %q", snippet)
		}
		*errs = append(*errs, fmt.Sprintf("%s syntax error: %s (line %d)", label, msg, line))
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectSyntaxErrors(node.Child(i), content, label, errs, depth+1)
	}
}

func errorSnippet(node *sitter.Node, content []byte) string {
	start, end := node.StartByte(), node.EndByte()
	if end > uint32(len(content)) {
		end = uint32(len(content))
	}
	if end <= start {
		return ""
	}
	snippet := strings.TrimSpace(string(content[start:end]))
	if i := strings.IndexByte(snippet, '\n'); i >= 0 {
		snippet = snippet[:i]
	}
	if len(snippet) > 40 {
		snippet = snippet[:40] + "..."
	}
	return snippet
}
