package analysis

import (
	"context"
	"errors"
	"fmt"
)

// Kind tags an upstream failure with the category the retry policy and the
// HTTP layer switch on.
type Kind int

const (
	KindOther Kind = iota
	KindResourceExhausted
	KindUnavailable
	KindTimeout
	KindPermissionDenied
	KindInvalidArgument
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindPermissionDenied:
		return "permission_denied"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "other"
	}
}

// Transient reports whether a retry after a delay may succeed.
func (k Kind) Transient() bool {
	switch k {
	case KindResourceExhausted, KindUnavailable, KindTimeout:
		return true
	}
	return false
}

// Error is a classified upstream failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the tag from err. Context deadline errors that were never
// classified count as timeouts; anything else untagged is KindOther.
func KindOf(err error) Kind {
	if err == nil {
		return KindOther
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindOther
}

// Detail returns the innermost message of a classified error, suitable for
// showing to API callers.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
