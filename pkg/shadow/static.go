package shadow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jingkaihe/skillforge/pkg/logger"
)

// StaticResult is the outcome of the static pass. Any error rejects.
type StaticResult struct {
	Errors   []string
	Warnings []string
}

type placeholder struct {
	name string
	re   *regexp.Regexp
}

var placeholders = []placeholder{
	{"TODO", regexp.MustCompile(`(?i)\bTODO\b`)},
	{"FIXME", regexp.MustCompile(`(?i)\bFIXME\b`)},
	{"placeholder", regexp.MustCompile(`(?i)\bplaceholder\b`)},
	{"your_api_key", regexp.MustCompile(`(?i)\byour_?api_?key\b`)},
	{"your_token", regexp.MustCompile(`(?i)\byour_?token\b`)},
	{"your_project", regexp.MustCompile(`(?i)\byour_?project\b`)},
	{"example_module", regexp.MustCompile(`(?i)\bexample_?module\b`)},
	{"my_library", regexp.MustCompile(`(?i)\bmy_?library\b`)},
}

var (
	installRe      = regexp.MustCompile(`\b(pip3?|npm|pnpm|yarn)\s+(?:install|i|add)\s+([^\n]+)`)
	pythonImportRe = regexp.MustCompile(`(?m)^\s*(?:from|import)\s+([^\s#,;]+)`)
	jsFromRe       = regexp.MustCompile(`\bfrom\s+['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)
	jsRequireRe    = regexp.MustCompile(`\b(?:require|import)\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]\s*\)`)
	jsBareImportRe = regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`)

	shellOperators = map[string]bool{">": true, ">>": true, "<": true, "|": true, "&&": true, "||": true, ";": true, "2>&1": true, "&": true}

	// version comparisons are only safe from shell redirection when quoted
	versionOperators = strings.NewReplacer(">=", "", "<=", "", "==", "", "~=", "", "!=", "")
)

// Analyze runs the static pass over a model answer.
func Analyze(ctx context.Context, output string) StaticResult {
	var res StaticResult
	blocks := ExtractCodeBlocks(output)

	if len(blocks) == 0 {
		res.Warnings = append(res.Warnings, "no code blocks detected for static analysis")
	}

	for _, p := range placeholders {
		if p.re.MatchString(output) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("found placeholder text %q", p.name))
		}
	}

	res.Errors = append(res.Errors, checkInstallSpecifiers(output)...)

	for _, b := range blocks {
		switch b.Language {
		case LangPython:
			res.Errors = append(res.Errors, checkPythonImports(b.Code)...)
		case LangJavaScript, LangTypeScript:
			res.Errors = append(res.Errors, checkJSImports(b.Code)...)
		}

		errs, err := syntaxErrors(ctx, b.Language, b.Code)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("language", b.Language).Warn("syntax check could not parse block")
			continue
		}
		res.Errors = append(res.Errors, errs...)
	}

	return res
}

func checkInstallSpecifiers(text string) []string {
	var issues []string
	for _, m := range installRe.FindAllStringSubmatch(text, -1) {
		tool := m[1]
		if tool == "pip3" {
			tool = "pip"
		}
		for _, arg := range strings.Fields(m[2]) {
			if shellOperators[arg] {
				break
			}
			if strings.HasPrefix(arg, "-") {
				continue
			}
			if isMalformedSpecifier(strings.Trim(arg, `"'`), isQuoted(arg)) {
				issues = append(issues, fmt.Sprintf("invalid %s package specifier: %s", tool, arg))
			}
		}
	}
	return issues
}

func isQuoted(arg string) bool {
	return len(arg) >= 2 && (arg[0] == '"' || arg[0] == '\'') && arg[len(arg)-1] == arg[0]
}

// isMalformedSpecifier flags ellipses, template braces and angle brackets.
// An unquoted < or > is a shell redirection, so only quoted specifiers may
// carry version comparisons.
func isMalformedSpecifier(spec string, quoted bool) bool {
	if strings.Contains(spec, "...") || strings.ContainsAny(spec, "{}") {
		return true
	}
	if quoted {
		spec = versionOperators.Replace(spec)
	}
	return strings.ContainsAny(spec, "<>")
}

func checkPythonImports(code string) []string {
	var issues []string
	for _, m := range pythonImportRe.FindAllStringSubmatch(code, -1) {
		name := m[1]
		switch {
		case strings.Contains(name, "-") || strings.HasPrefix(name, "/"):
			issues = append(issues, fmt.Sprintf("invalid Python import name: %s", name))
		case strings.Contains(name, "/"):
			issues = append(issues, fmt.Sprintf("suspicious Python import path: %s", name))
		}
	}
	return issues
}

func checkJSImports(code string) []string {
	var issues []string
	check := func(kind, path string) {
		if strings.Contains(path, " ") || strings.Contains(path, "${") || strings.Contains(path, "{{") {
			issues = append(issues, fmt.Sprintf("invalid JS %s path: %s", kind, path))
		}
	}
	for _, m := range jsFromRe.FindAllStringSubmatch(code, -1) {
		check("import", m[1])
	}
	for _, m := range jsBareImportRe.FindAllStringSubmatch(code, -1) {
		check("import", m[1])
	}
	for _, m := range jsRequireRe.FindAllStringSubmatch(code, -1) {
		check("require", m[1])
	}
	return issues
}
