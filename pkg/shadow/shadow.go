// Package shadow checks a model's claimed solution before it is trusted:
// a static pass over its code blocks and, when configured, a sandboxed
// compile check.
package shadow

import (
	"context"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
)

// maxQuerySummary bounds the error summary carried into a gap search query.
const maxQuerySummary = 120

// Result is the verdict on a claimed solution.
type Result struct {
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	// ErrorSummary joins the errors of a rejection.
	ErrorSummary string `json:"error_summary,omitempty"`
	// SearchQuery is the gap query for a rejection: the task followed by the
	// leading error.
	SearchQuery string `json:"search_query,omitempty"`
	// Sandbox is set when the sandbox ran.
	Sandbox *SandboxResult `json:"sandbox,omitempty"`
}

// Err returns the rejection errors combined, or nil when the result passed.
func (r Result) Err() error {
	if r.Passed {
		return nil
	}
	var merr *multierror.Error
	for _, e := range r.Errors {
		merr = multierror.Append(merr, errors.New(e))
	}
	return merr.ErrorOrNil()
}

// Validator runs the shadow checks.
type Validator struct {
	runner Runner
}

// New returns a Validator. A nil runner skips the sandbox pass.
func New(runner Runner) *Validator {
	return &Validator{runner: runner}
}

// Validate checks output, a solution claimed for task.
func (v *Validator) Validate(ctx context.Context, task, output string) Result {
	var res Result
	_ = telemetry.WithSpan(ctx, "shadow.validate", func(ctx context.Context) error {
		res = v.validate(ctx, task, output)
		telemetry.SetAttributes(ctx, attribute.Bool("passed", res.Passed), attribute.Int("errors", len(res.Errors)))
		return nil
	})
	return res
}

func (v *Validator) validate(ctx context.Context, task, output string) Result {
	log := logger.G(ctx)

	static := Analyze(ctx, output)
	res := Result{Warnings: static.Warnings}
	for _, w := range static.Warnings {
		log.WithField("warning", w).Debug("shadow validation warning")
	}

	if len(static.Errors) > 0 {
		return reject(res, task, static.Errors)
	}

	if v.runner != nil {
		sb := v.runner.Run(ctx, task, ExtractCodeBlocks(output))
		res.Sandbox = &sb
		if !sb.Success() {
			summary := strings.TrimSpace(sb.Stderr)
			if summary == "" {
				summary = "sandbox validation failed"
			}
			return reject(res, task, []string{summary})
		}
	}

	res.Passed = true
	return res
}

func reject(res Result, task string, errs []string) Result {
	res.Passed = false
	res.Errors = errs
	res.ErrorSummary = strings.Join(errs, "; ")
	res.SearchQuery = SearchQuery(task, errs[0])
	return res
}

// SearchQuery builds the gap search query for a rejected solution from the
// first line of its leading error.
func SearchQuery(task, errSummary string) string {
	summary := strings.TrimSpace(errSummary)
	if i := strings.IndexByte(summary, '\n'); i >= 0 {
		summary = strings.TrimSpace(summary[:i])
	}
	if len(summary) > maxQuerySummary {
		summary = summary[:maxQuerySummary]
	}
	return strings.TrimSpace(task + " " + summary)
}
