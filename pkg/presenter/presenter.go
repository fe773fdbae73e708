// Package presenter renders user-facing CLI output: progress for each
// pipeline stage, warnings, errors and the final session summary.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// SessionStats summarises a teacher session for display.
type SessionStats struct {
	Attempts     int
	GapsFilled   []string
	CorpusPages  int
	InputTokens  int64
	OutputTokens int64
}

// Presenter is the CLI output surface.
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Stats(stats *SessionStats)
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode controls colored output.
type ColorMode int

const (
	// ColorAuto lets the color package detect terminal support.
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// TerminalPresenter writes to a terminal.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	colorMode   ColorMode
	quiet       bool
}

// New returns a presenter on stdout/stderr.
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions returns a presenter with explicit writers and color mode.
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}

	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		colorMode:   colorMode,
	}
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}

	switch os.Getenv("SKILLFORGE_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error prints an error to stderr. Errors are shown even in quiet mode.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	c := color.New(color.FgRed, color.Bold)
	if context != "" {
		c.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
		return
	}
	c.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
}

func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section prints an underlined header.
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}
	c := color.New(color.Bold)
	c.Fprintf(p.output, "%s\n", title)
	c.Fprintf(p.output, "%s\n", strings.Repeat("-", len(title)))
}

// Stats prints the session summary.
func (p *TerminalPresenter) Stats(stats *SessionStats) {
	if p.quiet || stats == nil {
		return
	}

	c := color.New(color.FgCyan, color.Bold)
	c.Fprintf(p.output, "[Session] Attempts: %d | Gaps filled: %d | Corpus pages: %d\n",
		stats.Attempts, len(stats.GapsFilled), stats.CorpusPages)
	if stats.InputTokens > 0 || stats.OutputTokens > 0 {
		c.Fprintf(p.output, "[Usage] Input tokens: %d | Output tokens: %d | Total: %d\n",
			stats.InputTokens, stats.OutputTokens, stats.InputTokens+stats.OutputTokens)
	}
	for _, gap := range stats.GapsFilled {
		fmt.Fprintf(p.output, "  - %s\n", gap)
	}
}

func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter = New()

// Error prints an error using the default presenter.
func Error(err error, context string) { defaultPresenter.Error(err, context) }

// Success prints a success message using the default presenter.
func Success(message string) { defaultPresenter.Success(message) }

// Warning prints a warning using the default presenter.
func Warning(message string) { defaultPresenter.Warning(message) }

// Info prints a message using the default presenter.
func Info(message string) { defaultPresenter.Info(message) }

// Section prints a header using the default presenter.
func Section(title string) { defaultPresenter.Section(title) }

// Stats prints a session summary using the default presenter.
func Stats(stats *SessionStats) { defaultPresenter.Stats(stats) }

// Separator prints a rule using the default presenter.
func Separator() { defaultPresenter.Separator() }

// SetQuiet toggles quiet mode on the default presenter.
func SetQuiet(quiet bool) { defaultPresenter.SetQuiet(quiet) }
