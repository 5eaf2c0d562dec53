// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNoData        = errors.New("no data found")
	ErrEmptyRange    = errors.New("no bars in the requested date range")
	ErrConfigInvalid = errors.New("invalid configuration")
	ErrDatabaseError = errors.New("database error")
	ErrRunNotFound   = errors.New("run not found")
)

// DataError represents an error in the input price series.
type DataError struct {
	Path    string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s]: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s]: %s", e.Path, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(path, message string, err error) *DataError {
	return &DataError{
		Path:    path,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
