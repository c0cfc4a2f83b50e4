package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the type of error
type Kind int

const (
	ErrInternal Kind = iota
	ErrNotFound
	ErrValidation
	ErrConflict
	ErrInvalidInput
	ErrUnauthorized
	ErrNumberUnavailable
	ErrConflictingConfirmation
	ErrContention
	ErrAlreadyResolved
	ErrTimeout
)

var kindNames = map[Kind]string{
	ErrInternal:                "internal",
	ErrNotFound:                "not_found",
	ErrValidation:              "validation",
	ErrConflict:                "conflict",
	ErrInvalidInput:            "invalid_request",
	ErrUnauthorized:            "unauthorized",
	ErrNumberUnavailable:       "number_unavailable",
	ErrConflictingConfirmation: "conflicting_confirmation",
	ErrContention:              "contention",
	ErrAlreadyResolved:         "already_resolved",
	ErrTimeout:                 "timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether a caller may retry after re-reading state.
// Timeout is included because every write is all-or-nothing.
func (k Kind) Retryable() bool {
	switch k {
	case ErrNumberUnavailable, ErrConflictingConfirmation, ErrContention, ErrTimeout:
		return true
	}
	return false
}

// Error is an application-level error with a kind for classification
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Constructor functions for common error types

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(msg string) *Error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func Conflictf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

func InvalidInputf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

func Unauthorizedf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// NumberUnavailable reports the requested numbers that are already taken.
func NumberUnavailable(numbers []int) *Error {
	return &Error{Kind: ErrNumberUnavailable, Message: fmt.Sprintf("numbers already taken: %v", numbers)}
}

// ConflictingConfirmation reports the numbers already held by another confirmed participation.
func ConflictingConfirmation(numbers []int) *Error {
	return &Error{Kind: ErrConflictingConfirmation, Message: fmt.Sprintf("numbers already confirmed for another participation: %v", numbers)}
}

func Contention(attempts int, err error) *Error {
	return &Error{Kind: ErrContention, Message: fmt.Sprintf("draw is busy, gave up after %d attempts", attempts), Err: err}
}

func AlreadyResolved(drawID string) *Error {
	return &Error{Kind: ErrAlreadyResolved, Message: fmt.Sprintf("draw %s already resolved", drawID)}
}

func Timeout(err error) *Error {
	return &Error{Kind: ErrTimeout, Message: "operation timed out", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal error", Err: err}
}

func Internalf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with additional context
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or ErrInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrInternal
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return stderrors.As(err, &appErr) && appErr.Kind == kind
}
