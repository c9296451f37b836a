// Package errs defines the error taxonomy the room core reports through, so
// callers can branch on kind instead of matching strings.
package errs

import "errors"

// Kind classifies an error by how the caller should react to it.
type Kind int

const (
	// KindValidation marks a patch that is fatally malformed (missing unitId,
	// unknown stage). No state changes.
	KindValidation Kind = iota
	// KindStale marks a patch whose version did not advance the current unit.
	KindStale
	// KindTranslator marks a translation backend failure (both providers failed).
	KindTranslator
	// KindSynthesis marks a synthesis backend failure.
	KindSynthesis
	// KindStore marks a best-effort persistence failure.
	KindStore
	// KindWindowClosed marks ingress rejected because the room's time window
	// is not open yet (early) or has passed (expired).
	KindWindowClosed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStale:
		return "stale"
	case KindTranslator:
		return "translator"
	case KindSynthesis:
		return "synthesis"
	case KindStore:
		return "store"
	case KindWindowClosed:
		return "window_closed"
	default:
		return "unknown"
	}
}

// Error is a room-core error tagged with a Kind and, optionally, a metric
// reason distinct from the human message (e.g. "only_filler", "stale_version").
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind wrapping err (which may be nil).
func New(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Is reports whether err wraps an *Error (found with errors.As) of the given
// kind, for callers that only care about the kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
