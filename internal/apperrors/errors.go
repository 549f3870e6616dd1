// Package apperrors provides structured application errors with exit code
// mapping and classification of remote API failures.
package apperrors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrInternal    = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "project", "numBytes")
	Resource string // For not found/conflict (e.g., "cdnKey")
	Op       string // Operation that failed (e.g., "dlp.CreateDlpJob")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel and the cause, so both errors.Is(err, ErrX)
// and errors.As on the remote error keep working.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Conflict creates a conflict error for a resource.
func Conflict(resource, id, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  reason,
		Resource: resource,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Remote classifies a failed API call by its gRPC status code.
// Returns nil for a nil cause.
func Remote(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var sentinel error
	switch status.Code(cause) {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		sentinel = ErrValidation
	case codes.NotFound:
		sentinel = ErrNotFound
	case codes.AlreadyExists, codes.Aborted:
		sentinel = ErrConflict
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		sentinel = ErrUnavailable
	default:
		sentinel = ErrInternal
	}
	return &Error{
		Sentinel: sentinel,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
