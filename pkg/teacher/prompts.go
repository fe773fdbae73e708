package teacher

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/llm"
)

//go:embed templates/*
var templateFS embed.FS

// Template names.
const (
	SystemTemplate         = "templates/system.tmpl"
	AttemptTemplate        = "templates/attempt.tmpl"
	AnalysisSystemTemplate = "templates/analysis_system.tmpl"
	AnalysisTemplate       = "templates/analysis.tmpl"
)

// PromptContext is the data the prompt templates are executed with.
type PromptContext struct {
	Task   string
	Corpus string
	// Strict selects the escalated wording used after an ambiguous verdict.
	Strict bool

	Summary  string
	Solution string

	CompleteTool string
	GapTool      string
}

func newPromptContext(task string) *PromptContext {
	return &PromptContext{
		Task:         task,
		CompleteTool: llm.ToolCompleteTask,
		GapTool:      llm.ToolRequestDocumentation,
	}
}

// Renderer renders the teacher prompts.
type Renderer struct {
	templates *template.Template
	parseErr  error
}

// NewRenderer parses every .tmpl file under templates/ in fsys.
func NewRenderer(fsys fs.FS) *Renderer {
	r := &Renderer{}
	r.templates, r.parseErr = parseTemplates(fsys)
	return r
}

var defaultRenderer = NewRenderer(templateFS)

// Render executes the named template with ctx.
func (r *Renderer) Render(name string, ctx *PromptContext) (string, error) {
	if r.parseErr != nil {
		return "", errors.Wrap(r.parseErr, "failed to initialize templates")
	}
	if r.templates.Lookup(name) == nil {
		return "", errors.Errorf("template %s not found", name)
	}

	var buf strings.Builder
	if err := r.templates.ExecuteTemplate(&buf, name, ctx); err != nil {
		return "", errors.Wrapf(err, "failed to execute template %s", name)
	}
	return strings.TrimSpace(buf.String()), nil
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	var paths []string
	err := fs.WalkDir(fsys, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".tmpl") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to collect template paths")
	}
	sort.Strings(paths)

	templates := template.New("templates")
	for _, path := range paths {
		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read template file %s", path)
		}
		if _, err := templates.New(path).Parse(string(content)); err != nil {
			return nil, errors.Wrapf(err, "failed to parse template %s", path)
		}
	}
	return templates, nil
}
