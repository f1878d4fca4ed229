package calendar

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Kind classifies a backend failure into the closed set the agent
// dispatches on.
type Kind int

const (
	// KindOther covers every failure that is not one of the specific kinds
	// below (rate limits, server errors, transport failures).
	KindOther Kind = iota
	// KindUnauthenticated indicates an invalid or expired access token.
	KindUnauthenticated
	// KindForbidden indicates the token lacks calendar permissions.
	KindForbidden
	// KindNotFound indicates the referenced event or calendar is gone.
	KindNotFound
)

// String returns a stable label for the kind, suitable for logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// Error wraps a Google Calendar API failure with a stable classification
// and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("calendar: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.As/Is keep working.
func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError classifies err by googleapi status code and wraps it with the
// operation name. Returns nil if err is nil.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOther
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			kind = KindUnauthenticated
		case http.StatusForbidden:
			kind = KindForbidden
		case http.StatusNotFound:
			kind = KindNotFound
		}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err, or KindOther if err was not
// produced by this package.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindOther
}

// IsNotFound reports whether err is a classified not-found failure.
func IsNotFound(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Kind == KindNotFound
}

// ErrorMessage converts a backend failure into an operator-facing message
// for action results and API responses.
func ErrorMessage(err error) string {
	switch KindOf(err) {
	case KindUnauthenticated:
		return "Authentication failed. Please re-login."
	case KindForbidden:
		return "Permission denied. Check calendar permissions."
	case KindNotFound:
		return "Event not found."
	default:
		return fmt.Sprintf("Google Calendar error: %v", err)
	}
}
