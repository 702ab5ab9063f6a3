package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a qw error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrDecodeFailed       ErrorCode = "DECODE_FAILED"       // 400
	ErrCategoryMismatch   ErrorCode = "CATEGORY_MISMATCH"   // 400
	ErrUnsupportedService ErrorCode = "UNSUPPORTED_SERVICE" // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrAlreadyExists      ErrorCode = "ALREADY_EXISTS"      // 409
	ErrNotInitialized     ErrorCode = "NOT_INITIALIZED"     // 412
	ErrValidationFailed   ErrorCode = "VALIDATION_FAILED"   // 422
	ErrInternal           ErrorCode = "INTERNAL"            // 500
	ErrRemoteFailed       ErrorCode = "REMOTE_FAILED"       // 502
)

// QwError represents a structured error with code, status, and details.
type QwError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *QwError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *QwError {
	return &QwError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewDecodeFailed creates a 400 error for stored or received text that does not
// conform to the record format.
func NewDecodeFailed(msg string) *QwError {
	return &QwError{
		Code:    ErrDecodeFailed,
		Status:  400,
		Message: msg,
	}
}

// NewCategoryMismatch creates a 400 error for comparing records of different stages.
func NewCategoryMismatch(self, other string) *QwError {
	return &QwError{
		Code:    ErrCategoryMismatch,
		Status:  400,
		Message: fmt.Sprintf("cannot compare a %s with a %s", self, other),
		Details: map[string]any{"self": self, "other": other},
	}
}

// NewUnsupportedService creates a 400 error for an issue service qw cannot talk to.
func NewUnsupportedService(name string) *QwError {
	return &QwError{
		Code:    ErrUnsupportedService,
		Status:  400,
		Message: fmt.Sprintf("Do not know how to connect to the %s service!", name),
		Details: map[string]any{"service": name},
	}
}

// NewNotFound creates a 404 error for when a record cannot be found.
func NewNotFound(identifier string) *QwError {
	return &QwError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewAlreadyExists creates a 409 error for identifier collisions.
func NewAlreadyExists(msg string) *QwError {
	return &QwError{
		Code:    ErrAlreadyExists,
		Status:  409,
		Message: msg,
	}
}

// NewNotInitialized creates a 412 error for a repository without usable qw configuration.
func NewNotInitialized(msg string) *QwError {
	return &QwError{
		Code:    ErrNotInitialized,
		Status:  412,
		Message: msg,
	}
}

// NewValidationFailed creates a 422 error naming the first missing required field.
func NewValidationFailed(stage, field string) *QwError {
	return &QwError{
		Code:    ErrValidationFailed,
		Status:  422,
		Message: fmt.Sprintf("%s is missing required field %q", stage, field),
		Details: map[string]any{"stage": stage, "field": field},
	}
}

// NewRemoteFailed creates a 502 error for failures talking to the issue service.
func NewRemoteFailed(err error) *QwError {
	msg := "remote service error"
	if err != nil {
		msg = err.Error()
	}
	return &QwError{
		Code:    ErrRemoteFailed,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *QwError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &QwError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (or anything it wraps) is a QwError with the given code.
func Is(err error, code ErrorCode) bool {
	var qwErr *QwError
	if stderrors.As(err, &qwErr) {
		return qwErr.Code == code
	}
	return false
}

// As returns the QwError in err's chain, if any.
func As(err error) (*QwError, bool) {
	var qwErr *QwError
	if stderrors.As(err, &qwErr) {
		return qwErr, true
	}
	return nil, false
}
