package shadow

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Languages recognised by the validator.
const (
	LangPython     = "python"
	LangBash       = "bash"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
)

// CodeBlock is a fenced code block from a model answer.
type CodeBlock struct {
	// Language is the normalised info-string language, or "" when untagged.
	Language string
	Code     string
}

var languageAliases = map[string]string{
	"python": LangPython, "py": LangPython, "python3": LangPython,
	"bash": LangBash, "sh": LangBash, "shell": LangBash, "zsh": LangBash,
	"javascript": LangJavaScript, "js": LangJavaScript, "mjs": LangJavaScript, "cjs": LangJavaScript, "node": LangJavaScript,
	"typescript": LangTypeScript, "ts": LangTypeScript, "mts": LangTypeScript,
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[lang]; ok {
		return alias
	}
	return lang
}

// ExtractCodeBlocks returns the fenced code blocks of a markdown document in
// document order.
func ExtractCodeBlocks(markdown string) []CodeBlock {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var code strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			code.Write(seg.Value(source))
		}
		blocks = append(blocks, CodeBlock{
			Language: normalizeLanguage(string(fenced.Language(source))),
			Code:     code.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
