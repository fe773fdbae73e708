// Package validation checks a finished teacher session before its output is
// turned into a skill.
package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/teacher"
)

// Default content thresholds in characters.
const (
	DefaultMinChars  = 500
	DefaultWarnChars = 200
)

// Report is the outcome of validating a session result.
type Report struct {
	Passed       bool     `json:"passed"`
	ChecksRun    int      `json:"checks_run"`
	ChecksPassed int      `json:"checks_passed"`
	Warnings     []string `json:"warnings,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// Err returns the report's errors as a validation error, or nil when it passed.
func (r Report) Err() error {
	if r.Passed {
		return nil
	}
	var merr *multierror.Error
	for _, e := range r.Errors {
		merr = multierror.Append(merr, errors.New(e))
	}
	return forgeerr.Wrap(forgeerr.KindValidation, merr.ErrorOrNil(), "session output failed validation")
}

var (
	inlineCodeRe = regexp.MustCompile("`[^`]+`")

	commandHints = []string{
		"pip install", "npm install", "cargo", "make", "cmake",
		"python ", "node ", "go ", "rustc", "gcc", "clang",
		"import ", "from ", "require(", "use ",
	}

	refusalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)I (?:cannot|can't|am unable to)`),
		regexp.MustCompile(`(?i)(?:sorry|unfortunately).{0,50}(?:cannot|can't|unable)`),
		regexp.MustCompile(`(?i)I don't have (?:access|information|knowledge)`),
		regexp.MustCompile(`(?i)error:`),
	}
)

// Validator runs the post-session checks.
type Validator struct {
	minChars  int
	warnChars int
}

// New creates a Validator from cfg, falling back to the default thresholds.
func New(cfg config.ValidationConfig) *Validator {
	v := &Validator{minChars: cfg.MinChars, warnChars: cfg.WarnChars}
	if v.minChars <= 0 {
		v.minChars = DefaultMinChars
	}
	if v.warnChars <= 0 || v.warnChars > v.minChars {
		v.warnChars = min(DefaultWarnChars, v.minChars)
	}
	return v
}

// Validate checks a session result. Errors make the report fail; warnings
// are informational.
func (v *Validator) Validate(ctx context.Context, res *teacher.Result) Report {
	var r Report
	pass := func() { r.ChecksRun++; r.ChecksPassed++ }
	warn := func(msg string) { pass(); r.Warnings = append(r.Warnings, msg) }
	fail := func(msg string) { r.ChecksRun++; r.Errors = append(r.Errors, msg) }

	if res.Success {
		pass()
	} else {
		fail("teacher session did not complete the task")
	}

	output := strings.TrimSpace(res.FinalOutput)
	switch n := len(output); {
	case n >= v.minChars:
		pass()
	case n >= v.warnChars:
		warn(fmt.Sprintf("output is relatively short (%d chars)", n))
	default:
		fail(fmt.Sprintf("output too short (%d chars), may be incomplete", n))
	}

	if hasCode(output) {
		pass()
	} else {
		warn("no code blocks or commands detected, verify this is expected")
	}

	if hasRefusal(output) {
		warn("output contains phrases that may indicate an incomplete solution")
	} else {
		pass()
	}

	r.Passed = len(r.Errors) == 0
	log := logger.G(ctx).WithField("session_id", res.SessionID)
	for _, w := range r.Warnings {
		log.WithField("warning", w).Warn("validation warning")
	}
	log.WithField("passed", r.Passed).WithField("checks_passed", r.ChecksPassed).WithField("checks_run", r.ChecksRun).Info("session output validated")
	return r
}

func hasCode(output string) bool {
	if strings.Contains(output, "```") || inlineCodeRe.MatchString(output) {
		return true
	}
	lower := strings.ToLower(output)
	for _, hint := range commandHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func hasRefusal(output string) bool {
	for _, re := range refusalPatterns {
		if re.MatchString(output) {
			return true
		}
	}
	return false
}
