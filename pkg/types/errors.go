package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeUnauthorized   ErrorType = "unauthorized"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeImmutable      ErrorType = "immutable"
	ErrorTypeCollaborator   ErrorType = "collaborator"
	ErrorTypePartialFailure ErrorType = "partial_failure"
)

// MedrexError represents a structured error returned to callers of the consent service
type MedrexError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *MedrexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *MedrexError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error category onto a response status code
func (e *MedrexError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeValidation, ErrorTypeConflict, ErrorTypeImmutable:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *MedrexError {
	return &MedrexError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(code, message string) *MedrexError {
	return &MedrexError{
		Type:    ErrorTypeUnauthorized,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *MedrexError {
	return &MedrexError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates a new duplicate-record error
func NewConflictError(code, message string) *MedrexError {
	return &MedrexError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// NewImmutableFieldError creates an error for an attempted change of an immutable field
func NewImmutableFieldError(field string) *MedrexError {
	return &MedrexError{
		Type:    ErrorTypeImmutable,
		Code:    ErrCodeImmutableField,
		Message: fmt.Sprintf("%s can not be changed", field),
		Details: map[string]interface{}{"field": field},
	}
}

// NewCollaboratorError creates an error for a failed ledger, CA, key service or tokenizer call.
// The cause is kept for logging and never rendered to the caller.
func NewCollaboratorError(code, message string, cause error) *MedrexError {
	return &MedrexError{
		Type:    ErrorTypeCollaborator,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPartialFailureError creates an error for a flow where one non-transactional step succeeded
func NewPartialFailureError(code, message string, cause error) *MedrexError {
	return &MedrexError{
		Type:    ErrorTypePartialFailure,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// AsMedrexError returns err as a MedrexError, wrapping unknown errors as collaborator failures
func AsMedrexError(err error) *MedrexError {
	if err == nil {
		return nil
	}
	var merr *MedrexError
	if errors.As(err, &merr) {
		return merr
	}
	return NewCollaboratorError(ErrCodeInternalError, "internal error", err)
}

// IsNotFound reports whether err is a not-found MedrexError
func IsNotFound(err error) bool {
	var merr *MedrexError
	return errors.As(err, &merr) && merr.Type == ErrorTypeNotFound
}

// Common error codes
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyRegistered   = "ALREADY_REGISTERED"
	ErrCodeImmutableField      = "IMMUTABLE_FIELD"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeLedgerError         = "LEDGER_ERROR"
	ErrCodeIdentityError       = "IDENTITY_ERROR"
	ErrCodeKeyServiceError     = "KEY_SERVICE_ERROR"
	ErrCodeTokenizerError      = "TOKENIZER_ERROR"
	ErrCodePartialRegistration = "PARTIAL_REGISTRATION"
	ErrCodeSelfEnrollment      = "SELF_ENROLLMENT"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeUnknownOperation    = "UNKNOWN_OPERATION"
)
