// Package escalate runs an operation normally and, when the outcome looks
// like a failure or is suspiciously thin, runs it once more with an escalated
// parameter set, keeping the better of the two outcomes.
package escalate

import (
	"context"
)

// Op runs one attempt. escalated is false on the first call and true on the retry.
type Op[T any] func(ctx context.Context, escalated bool) (T, error)

// Policy controls when to escalate and how to pick between outcomes.
type Policy[T any] struct {
	// Disabled skips the escalated retry, e.g. when the caller already
	// asked for the escalated mode up front.
	Disabled bool
	// NeedsEscalation reports whether a successful result is too thin to accept.
	// A nil func accepts every successful result.
	NeedsEscalation func(T) bool
	// Better reports whether candidate should replace current. A nil func
	// prefers the escalated result.
	Better func(candidate, current T) bool
	// OnEscalate is called before the escalated attempt with the reason, if set.
	OnEscalate func(firstErr error)
}

// Outcome describes which attempt produced the returned value.
type Outcome struct {
	Escalated bool
	// FirstErr is the error of the normal attempt, if any.
	FirstErr error
}

// Do runs op according to p. It returns an error only when no attempt
// produced a usable result, in which case the escalated error is returned
// (or the first error if escalation was disabled).
func Do[T any](ctx context.Context, op Op[T], p Policy[T]) (T, Outcome, error) {
	first, err := op(ctx, false)
	if err == nil && (p.NeedsEscalation == nil || !p.NeedsEscalation(first)) {
		return first, Outcome{}, nil
	}
	if p.Disabled {
		return first, Outcome{FirstErr: err}, err
	}

	if p.OnEscalate != nil {
		p.OnEscalate(err)
	}

	second, err2 := op(ctx, true)
	switch {
	case err2 != nil && err != nil:
		var zero T
		return zero, Outcome{Escalated: true, FirstErr: err}, err2
	case err2 != nil:
		// the normal attempt was thin but usable
		return first, Outcome{}, nil
	case err != nil:
		return second, Outcome{Escalated: true, FirstErr: err}, nil
	}

	if p.Better == nil || p.Better(second, first) {
		return second, Outcome{Escalated: true}, nil
	}
	return first, Outcome{}, nil
}
