package errors

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors for propagation decisions.
type Kind string

const (
	// KindSurfaceNotFound means the expected interactive structure could not
	// be located after exhausting every fallback extraction strategy. Fatal
	// to the current attempt, not to the session.
	KindSurfaceNotFound Kind = "surface_not_found"

	// KindQuotaExceeded rejects a batch submission before any action runs.
	KindQuotaExceeded Kind = "quota_exceeded"

	// KindTransientAction marks a single failed action inside a batch. It is
	// recorded and swallowed at the batch level, never raised.
	KindTransientAction Kind = "transient_action"

	// KindSessionInvalid means the authenticated context is no longer usable
	// and the caller must re-authenticate. No automatic retry.
	KindSessionInvalid Kind = "session_invalid"

	KindNetwork  Kind = "network"
	KindNotFound Kind = "not_found"
	KindUnknown  Kind = "unknown"
)

// Error carries a kind plus human-readable context for every abort.
type Error struct {
	Kind    Kind
	Message string
	// DiagnosticRef points at a stored diagnostic artifact, when one was
	// captured for this failure.
	DiagnosticRef string
	// Remaining is set on quota rejections so the caller can retry with a
	// valid subset.
	Remaining int
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.DiagnosticRef != "" {
		msg += fmt.Sprintf(" (diagnostic: %s)", e.DiagnosticRef)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// SurfaceNotFound builds a surface-structure failure with an optional
// diagnostic artifact reference.
func SurfaceNotFound(msg, diagnosticRef string, err error) *Error {
	return &Error{Kind: KindSurfaceNotFound, Message: msg, DiagnosticRef: diagnosticRef, Err: err}
}

// QuotaExceeded builds a wholesale batch rejection reporting the exact
// remaining allowance.
func QuotaExceeded(requested, remaining, limit int) *Error {
	return &Error{
		Kind:      KindQuotaExceeded,
		Message:   fmt.Sprintf("batch of %d exceeds daily limit %d, %d remaining today", requested, limit, remaining),
		Remaining: remaining,
	}
}

// TransientAction wraps a single-action failure (selector miss, network
// error, platform rejection) for recording.
func TransientAction(handle string, err error) *Error {
	return &Error{Kind: KindTransientAction, Message: fmt.Sprintf("action on %s failed", handle), Err: err}
}

// SessionInvalid marks the browsing context as requiring re-authentication.
func SessionInvalid(msg string, err error) *Error {
	return &Error{Kind: KindSessionInvalid, Message: msg, Err: err}
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func IsSurfaceNotFound(err error) bool { return IsKind(err, KindSurfaceNotFound) }
func IsQuotaExceeded(err error) bool   { return IsKind(err, KindQuotaExceeded) }
func IsSessionInvalid(err error) bool  { return IsKind(err, KindSessionInvalid) }

// DiagnosticRef extracts the diagnostic artifact reference from an engine
// error, or "" when there is none.
func DiagnosticRef(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.DiagnosticRef
	}
	return ""
}

// IsRetryable reports whether an error is worth retrying within the same
// operation. Session and structural failures never are.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindNetwork, KindUnknown:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode classifies HTTP status codes from the platform API.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
