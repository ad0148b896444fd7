package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes shared by every layer. The application boundary maps them to
// transport statuses.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeEmailExists         = "EMAIL_EXISTS"
	CodeUsernameExists      = "USERNAME_EXISTS"
	CodeInvalidAccount      = "INVALID_ACCOUNT"
	CodeInvalidVersion      = "INVALID_VERSION"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeTimeout             = "TIMEOUT"
	CodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code, so
// errors.Is(err, ErrEmailExists) matches any email conflict.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithCause returns a copy of the error carrying cause
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, cause: cause}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrEmailExists         = NewDomainError(CodeEmailExists, "Email address already exists")
	ErrUsernameExists      = NewDomainError(CodeUsernameExists, "Username already exists")
	ErrInvalidAccount      = NewDomainError(CodeInvalidAccount, "Account data is missing or invalid")
	ErrInvalidVersion      = NewDomainError(CodeInvalidVersion, "Version is invalid or outdated")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrTimeout             = NewDomainError(CodeTimeout, "Operation timed out")
	ErrStorageUnavailable  = NewDomainError(CodeStorageUnavailable, "Storage is unavailable")
	ErrValidationFailed    = NewDomainError(CodeValidationFailed, "Validation failed")
)

// NewEmailExistsError reports a duplicate email
func NewEmailExistsError(email string) *DomainError {
	return NewDomainError(CodeEmailExists, fmt.Sprintf("Email address %q already exists", email))
}

// NewUsernameExistsError reports a duplicate username
func NewUsernameExistsError(username string) *DomainError {
	return NewDomainError(CodeUsernameExists, fmt.Sprintf("Username %q already exists", username))
}

// NewInvalidVersionError reports an unparsable or outdated version token
func NewInvalidVersionError(token string) *DomainError {
	return NewDomainError(CodeInvalidVersion, fmt.Sprintf("Version %q is invalid or outdated", token))
}

// Violation is a single failed constraint
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated constraint of a rejected value.
// It matches ErrValidationFailed through errors.Is.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

// NewValidationError creates a validation error from violations
func NewValidationError(violations ...Violation) *ValidationError {
	return &ValidationError{Violations: violations}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is matches ErrValidationFailed
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Code returns the error code
func (e *ValidationError) Code() string {
	return CodeValidationFailed
}

// ErrorCode extracts the code of a domain or validation error, or "" for
// foreign errors.
func ErrorCode(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return CodeValidationFailed
	}
	var derr *DomainError
	if errors.As(err, &derr) {
		return derr.Code
	}
	return ""
}

// IsDomainError reports whether err carries a domain code
func IsDomainError(err error) bool {
	return ErrorCode(err) != ""
}
