package errors

import (
	"errors"
	"fmt"

	"sroanalysis/internal/measures"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeRedaction  ErrorType = "REDACTION"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper functions for common error types

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}

// NewRedactionError creates an error for a disclosure control failure
func NewRedactionError(message string, cause error) *AppError {
	return NewAppError(ErrTypeRedaction, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// Classify wraps a domain error in the AppError of matching type. Errors that
// already are AppErrors are returned unchanged; anything else is treated as
// an I/O failure.
func Classify(message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	var dve *measures.DataValidationError
	var exhausted *measures.RedactionExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return NewRedactionError(message, err).
			WithContext("column", exhausted.Column).
			WithContext("threshold", exhausted.Threshold)
	case errors.As(err, &dve):
		appErr := NewAppValidationError(message, err)
		if dve.Column != "" {
			appErr.WithContext("column", dve.Column)
		}
		return appErr
	default:
		return NewStorageError(message, err)
	}
}

// IsType reports whether err wraps an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}
