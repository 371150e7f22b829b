package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeTooLarge     ErrorType = "too_large"
	ErrorTypeUnavailable  ErrorType = "unavailable"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context.
// Message is safe to show to clients; Err is for logs only.
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
	return e.Type == t.Type && (t.Message == "" || e.Message == t.Message)
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
	}
}

func Unauthorized(message string) *DomainError {
	return NewDomainError(ErrorTypeUnauthorized, message, nil)
}

func Forbidden(message string) *DomainError {
	return NewDomainError(ErrorTypeForbidden, message, nil)
}

func BadRequest(message string) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, nil)
}

func NotFound(message string) *DomainError {
	return NewDomainError(ErrorTypeNotFound, message, nil)
}

func Conflict(message string) *DomainError {
	return NewDomainError(ErrorTypeConflict, message, nil)
}

func RateLimited(message string) *DomainError {
	return NewDomainError(ErrorTypeRateLimit, message, nil)
}

func TooLarge(message string) *DomainError {
	return NewDomainError(ErrorTypeTooLarge, message, nil)
}

// Unavailable marks a failure of a backing store the request depends on
func Unavailable(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeUnavailable, message, err)
}

// Internal wraps an unexpected failure
func Internal(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// Messages shared between the Auth Gate and the auth endpoints
const (
	MsgNoToken              = "No valid authorization token provided"
	MsgNoProfileToken       = "No authorization token provided"
	MsgInvalidToken         = "Invalid or expired token"
	MsgInvalidRefreshToken  = "Invalid or expired refresh token"
	MsgInvalidTokenType     = "Invalid token type"
	MsgUserNotFound         = "User not found or inactive"
	MsgInvalidCredentials   = "Invalid email or password"
	MsgSessionInvalid       = "Session expired or invalid"
	MsgAuthUnavailable      = "Authentication service temporarily unavailable"
	MsgAuthRequired         = "Authentication required"
	MsgOrgContextRequired   = "Organization context required"
	MsgOrgAccessDenied      = "Access denied to this organization"
	MsgOrgAccessUnavailable = "Unable to verify organization access"
)

var (
	ErrInvalidToken       = Unauthorized(MsgInvalidToken)
	ErrUserNotFound       = Unauthorized(MsgUserNotFound)
	ErrInvalidCredentials = Unauthorized(MsgInvalidCredentials)
	ErrSessionInvalid     = Unauthorized(MsgSessionInvalid)
	ErrOrgContextRequired = BadRequest(MsgOrgContextRequired)
	ErrOrgAccessDenied    = Forbidden(MsgOrgAccessDenied)
)

// StatusCode maps every error to an HTTP status. Non-domain errors are 500.
func StatusCode(err error) int {
	switch GetErrorType(err) {
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsUnavailableError checks if an error is a backing-store availability error
func IsUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnavailable
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

// GetErrorMessage returns the client-facing message of a domain error
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
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
