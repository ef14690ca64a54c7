package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeEmptyMessage   = "empty_message"
	ErrCodeMessageTooLong = "message_too_long"
	ErrCodeInvalidPage    = "invalid_pagination"
	ErrCodeNotMember      = "not_a_member"
	ErrCodeGroupNotFound  = "group_not_found"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInvalidMessage = "invalid_message"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("not authorized")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("backend unavailable")
)

// CoreError wraps a code and human-readable message.
// Message is safe to show to clients; the cause is only for logs.
type CoreError struct {
	Code    string
	Message string

	kind  error
	cause error
}

func (e *CoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Is reports whether target is the kind of this error.
func (e *CoreError) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

// Unwrap returns the underlying cause, if any.
func (e *CoreError) Unwrap() error {
	return e.cause
}

func validationError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg, kind: ErrValidation}
}

func forbiddenError() *CoreError {
	return &CoreError{Code: ErrCodeNotMember, Message: "not a member of this group", kind: ErrForbidden}
}

func groupNotFoundError() *CoreError {
	return &CoreError{Code: ErrCodeGroupNotFound, Message: "group not found", kind: ErrNotFound}
}

func unavailableError(op string, cause error) *CoreError {
	return &CoreError{
		Code:    ErrCodeUnavailable,
		Message: "service temporarily unavailable",
		kind:    ErrUnavailable,
		cause:   fmt.Errorf("%s: %w", op, cause),
	}
}

// AsCoreError extracts a *CoreError from err. Errors outside the taxonomy are
// reported as unavailable so callers never leak internal details.
func AsCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	return unavailableError("unexpected", err)
}
