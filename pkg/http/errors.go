package http

import (
	"fmt"
	"net/http"
)

// AppError is an application-level failure carrying the HTTP status it
// should be reported with.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return &AppError{Code: "ERR_BAD_REQUEST", Message: message, Status: http.StatusBadRequest}
}

// BadRequestErrorf creates a 400 error with formatting.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// ConflictError creates a 409 error for requests refused by current state.
func ConflictError(message string) *AppError {
	return &AppError{Code: "ERR_CONFLICT", Message: message, Status: http.StatusConflict}
}
