// Package domainerrors provides coded errors for domain operations.
//
// Every rejection a caller can observe carries a Code (the failure class) and
// a Message (the specific reason, surfaced verbatim). Services create these
// with New or Wrap; callers branch with Is/HasCode instead of string
// comparison.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeUnauthorized marks operations reserved for the registry owner.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks operations the caller's roles do not permit.
	CodeForbidden Code = "forbidden"
	// CodeInvalidState marks operations against the wrong lifecycle state
	// (inactive, expired, already executed, already voted).
	CodeInvalidState Code = "invalid_state"
	// CodeValidation marks zero/negative/out-of-range/empty arguments.
	CodeValidation Code = "validation"
	// CodeInsufficient marks insufficient balance, shares, or payment.
	CodeInsufficient Code = "insufficient"
	// CodeNotFound marks references to entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodeBadRequest marks malformed requests outside the other classes.
	CodeBadRequest Code = "bad_request"
	// CodeConflict marks writes that collide with existing records.
	CodeConflict Code = "conflict"
	// CodeInternal marks infrastructure failures behind an operation.
	CodeInternal Code = "internal"
	// CodeInvariantViolation marks breaches the core must halt on rather
	// than silently repair, e.g. a payout exceeding the currency pool.
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a domain error with a code and caller-facing reason.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and reason.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and reason to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// Reason extracts the caller-facing message, or the raw error text when err
// is not a domain error.
func Reason(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
