// Package forgeerr defines the error kinds surfaced by the skillforge pipeline.
// Every terminal failure is reported as an *Error carrying the stage that
// failed so callers can branch on the kind instead of matching messages.
package forgeerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindConfig         Kind = "config"
	KindDiscovery      Kind = "discovery"
	KindSearch         Kind = "search"
	KindCorpusBuild    Kind = "corpus_build"
	KindCorpusLoad     Kind = "corpus_load"
	KindCorpusUpdate   Kind = "corpus_update"
	KindAnalysis       Kind = "analysis"
	KindTeacherSession Kind = "teacher_session"
	KindValidation     Kind = "validation"
	KindService        Kind = "service"
)

// Error is a pipeline failure of a known kind.
type Error struct {
	Kind    Kind
	Message string
	// Attempt is the teacher attempt number the failure happened on, 0 outside a session.
	Attempt int
	// Preview holds the tail of the last model output for session failures.
	Preview string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Preview != "" {
		msg = fmt.Sprintf("%s\nlast output: %s", msg, e.Preview)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause supports errors.Cause from github.com/pkg/errors.
func (e *Error) Cause() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a kind and message. It returns nil if err is nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Preview shortens s to at most n characters for error reporting.
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
