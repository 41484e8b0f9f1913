package shared

import (
	"errors"
	"fmt"
)

// Error codes carried by DomainError
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeStorage    = "STORAGE_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Field names the offending input field for validation errors
	Field string `json:"field,omitempty"`
	// Err is the underlying cause, if any. It is never serialized.
	Err error `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates an error for malformed or missing input
func NewValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}

// NewNotFoundError creates an error naming the missing resource and its id
func NewNotFoundError(resource string, id any) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with id %v not found", resource, id),
	}
}

// NewStorageError wraps a persistence failure. op describes what was attempted.
func NewStorageError(op string, err error) *DomainError {
	return &DomainError{
		Code:    CodeStorage,
		Message: "failed to " + op,
		Err:     err,
	}
}

// IsValidationError reports whether err is or wraps a validation error
func IsValidationError(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsNotFoundError reports whether err is or wraps a not-found error
func IsNotFoundError(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsStorageError reports whether err is or wraps a storage error
func IsStorageError(err error) bool {
	return hasCode(err, CodeStorage)
}

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

