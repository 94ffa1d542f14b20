package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind int

// Kind constants define the error taxonomy shared by all services.
const (
	// KindInternal marks unexpected failures.
	KindInternal Kind = iota
	// KindValidation marks malformed input.
	KindValidation
	// KindConflict marks uniqueness and invariant violations.
	KindConflict
	// KindNotFound marks missing records.
	KindNotFound
	// KindUnauthorized marks bad credentials or tokens.
	KindUnauthorized
	// KindForbidden marks role-gated or self-targeted actions.
	KindForbidden
	// KindLocked marks a time-boxed account lockout.
	KindLocked
	// KindDependency marks failures of email, storage or queue collaborators.
	KindDependency
	// KindRateLimited marks a throttled client.
	KindRateLimited
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindLocked:
		return "locked"
	case KindDependency:
		return "dependency"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is a typed service error carrying a stable code and user-facing text.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Action  string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// With returns a copy carrying an extra detail value.
func (e *Error) With(key string, value any) *Error {
	out := *e
	out.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// WithMessage returns a copy with a replaced message.
func (e *Error) WithMessage(message string) *Error {
	out := *e
	out.Message = message
	return &out
}

// Wrap returns a copy that records the underlying cause.
func (e *Error) Wrap(cause error) *Error {
	out := *e
	out.Err = cause
	return &out
}

// New constructs an Error.
func New(kind Kind, code, message, action string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Action: action}
}

// Internal wraps an unexpected failure.
func Internal(op string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: op, Err: cause}
}

// KindOf reports the kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed.Kind
	}
	return KindInternal
}

// As extracts the typed error when present.
func As(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed, true
	}
	return nil, false
}
