package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a boltdiy error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"   // 401
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrContentTooLarge ErrorCode = "CONTENT_TOO_LARGE" // 413
	ErrStoreFailure    ErrorCode = "STORE_FAILURE"     // 500
	ErrInternal        ErrorCode = "INTERNAL"          // 500
)

// BoltError represents a structured error with code, status, and details.
type BoltError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *BoltError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying store or driver error, if any.
func (e *BoltError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BoltError {
	return &BoltError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthenticated creates a 401 error for calls made without a principal.
func NewUnauthenticated() *BoltError {
	return &BoltError{
		Code:    ErrUnauthenticated,
		Status:  401,
		Message: "user not authenticated",
	}
}

// NewNotFound creates a 404 error for a row that does not exist.
// The facade maps it to an absent result; it only crosses the store boundary.
func NewNotFound(kind, identifier string) *BoltError {
	return &BoltError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewContentTooLarge creates a 413 error when code content exceeds the size limit.
func NewContentTooLarge(max, actual int) *BoltError {
	return &BoltError{
		Code:    ErrContentTooLarge,
		Status:  413,
		Message: fmt.Sprintf("content exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewStoreFailure creates a 500 error for a store-layer failure other than not-found.
func NewStoreFailure(op string, err error) *BoltError {
	msg := op + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s failed: %v", op, err)
	}
	return &BoltError{
		Code:    ErrStoreFailure,
		Status:  500,
		Message: msg,
		Details: map[string]any{"op": op},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *BoltError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &BoltError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if err, or any error it wraps, is a BoltError with the given code.
func Is(err error, code ErrorCode) bool {
	var bErr *BoltError
	if stderrors.As(err, &bErr) {
		return bErr.Code == code
	}
	return false
}

// CodeOf returns the code of a BoltError, or ErrInternal for any other error.
func CodeOf(err error) ErrorCode {
	var bErr *BoltError
	if stderrors.As(err, &bErr) {
		return bErr.Code
	}
	return ErrInternal
}

// StatusOf returns the HTTP-style status of err, defaulting to 500.
func StatusOf(err error) int {
	var bErr *BoltError
	if stderrors.As(err, &bErr) && bErr.Status != 0 {
		return bErr.Status
	}
	return 500
}
