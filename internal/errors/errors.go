package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an rxscripts error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"             // 404
	ErrFileNotFound        ErrorCode = "FILE_NOT_FOUND"        // 404
	ErrContainerLoadFailed ErrorCode = "CONTAINER_LOAD_FAILED" // 422
	ErrDecodeFailed        ErrorCode = "DECODE_FAILED"         // 422
	ErrCancelled           ErrorCode = "CANCELLED"             // 499
	ErrIOFailed            ErrorCode = "IO_FAILED"             // 500
	ErrInternal            ErrorCode = "INTERNAL"              // 500
)

// RxError represents a structured error with code, status, and details.
type RxError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *RxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *RxError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *RxError {
	return &RxError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a script name or identifier with no
// matching record.
func NewNotFound(name string) *RxError {
	return &RxError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("script not found: %s", name),
		Details: map[string]any{"name": name},
	}
}

// NewFileNotFound creates a 404 error for a missing input path.
func NewFileNotFound(path string) *RxError {
	return &RxError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewContainerLoadFailed creates a 422 error for a container that could not
// be read or decoded.
func NewContainerLoadFailed(path string, err error) *RxError {
	return &RxError{
		Code:    ErrContainerLoadFailed,
		Status:  422,
		Message: fmt.Sprintf("cannot load container %s: %v", path, err),
		Details: map[string]any{"path": path},
		cause:   err,
	}
}

// NewDecodeFailed creates a 422 error for a record payload that does not
// decompress to UTF-8 text.
func NewDecodeFailed(name string, err error) *RxError {
	return &RxError{
		Code:    ErrDecodeFailed,
		Status:  422,
		Message: fmt.Sprintf("cannot decode script %q: %v", name, err),
		Details: map[string]any{"name": name},
		cause:   err,
	}
}

// NewCancelled creates a 499 error for an operation stopped by its context.
func NewCancelled(op string) *RxError {
	return &RxError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewIOFailed creates a 500 error for a failed file read or write.
func NewIOFailed(path string, err error) *RxError {
	return &RxError{
		Code:    ErrIOFailed,
		Status:  500,
		Message: fmt.Sprintf("%s: %v", path, err),
		Details: map[string]any{"path": path},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *RxError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &RxError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err is, or wraps, an RxError with the given code.
func Is(err error, code ErrorCode) bool {
	var rxErr *RxError
	if stderrors.As(err, &rxErr) {
		return rxErr.Code == code
	}
	return false
}
