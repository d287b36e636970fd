package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the caller-facing classification of an error
type ErrorType string

const (
	ErrorTypeInvalidArgument    ErrorType = "invalid_argument"
	ErrorTypeUnauthenticated    ErrorType = "unauthenticated"
	ErrorTypeFailedPrecondition ErrorType = "failed_precondition"
	ErrorTypeInternal           ErrorType = "internal"
)

// Status returns the wire status string used in error envelopes
func (t ErrorType) Status() string {
	switch t {
	case ErrorTypeInvalidArgument:
		return "INVALID_ARGUMENT"
	case ErrorTypeUnauthenticated:
		return "UNAUTHENTICATED"
	case ErrorTypeFailedPrecondition:
		return "FAILED_PRECONDITION"
	default:
		return "INTERNAL"
	}
}

// DomainError represents a structured error with additional context.
// Message is safe to show to callers; Err carries the internal cause.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables, usable as errors.Is targets

var (
	ErrChannelNameRequired = NewDomainError(ErrorTypeInvalidArgument, "channelName required", nil)
	ErrChannelNameTooLong  = NewDomainError(ErrorTypeInvalidArgument, "channelName must be at most 64 characters", nil)
	ErrInvalidUID          = NewDomainError(ErrorTypeInvalidArgument, "uid must be an unsigned 32-bit integer", nil)
	ErrUnknownRole         = NewDomainError(ErrorTypeInvalidArgument, "role must be one of: publisher, subscriber", nil)
	ErrUnknownEnvironment  = NewDomainError(ErrorTypeInvalidArgument, "env must be one of: prod, dev", nil)
	ErrMalformedRequest    = NewDomainError(ErrorTypeInvalidArgument, "request body is malformed", nil)

	ErrUnauthenticated = NewDomainError(ErrorTypeUnauthenticated, "caller must be authenticated to generate a token", nil)

	ErrCredentialsNotConfigured = NewDomainError(ErrorTypeFailedPrecondition, "credentials not configured", nil)

	ErrTokenGeneration = NewDomainError(ErrorTypeInternal, "token generation failed", nil)
)

// IsInvalidArgumentError checks if an error is an invalid argument error
func IsInvalidArgumentError(err error) bool {
	return GetErrorType(err) == ErrorTypeInvalidArgument
}

// IsUnauthenticatedError checks if an error is an unauthenticated error
func IsUnauthenticatedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthenticated
}

// IsFailedPreconditionError checks if an error is a configuration error
func IsFailedPreconditionError(err error) bool {
	return GetErrorType(err) == ErrorTypeFailedPrecondition
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// PublicMessage returns the caller-safe message of a domain error.
// Non-domain errors never leak their text.
func PublicMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return "An unexpected error occurred"
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
