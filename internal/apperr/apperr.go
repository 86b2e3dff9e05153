// Package apperr defines the error taxonomy shared by the scorers and the HTTP
// layer. Validation errors carry a client-facing message; everything else is
// reported to clients generically and logged with its cause.
package apperr

import (
	"errors"
	"fmt"
)

// Type classifies an AppError.
type Type string

const (
	// TypeValidation is a client input error.
	TypeValidation Type = "VALIDATION"

	// TypeInternal is a failure inside the service.
	TypeInternal Type = "INTERNAL"

	// TypeExternal is a failure of an upstream dependency.
	TypeExternal Type = "EXTERNAL"
)

// AppError is an error with a type and a message safe to show to clients.
type AppError struct {
	Type    Type
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation builds a client input error.
func Validation(format string, args ...any) *AppError {
	return &AppError{
		Type:    TypeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Internal wraps a service failure.
func Internal(message string, err error) *AppError {
	return &AppError{
		Type:    TypeInternal,
		Message: message,
		Err:     err,
	}
}

// External wraps an upstream failure.
func External(message string, err error) *AppError {
	return &AppError{
		Type:    TypeExternal,
		Message: message,
		Err:     err,
	}
}

// IsValidation reports whether err is, or wraps, a validation error.
func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == TypeValidation
}

// ClientMessage returns the message to expose for err. Non-validation errors
// get the supplied fallback so that causes stay server-side.
func ClientMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Type == TypeValidation {
		return appErr.Message
	}
	return fallback
}
