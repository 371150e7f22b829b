package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.Nil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeUnavailable,
				Message: MsgAuthUnavailable,
				Err:     errors.New("dial tcp: connection refused"),
			},
			wantMsg: "unavailable: Authentication service temporarily unavailable (dial tcp: connection refused)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := Internal("internal error", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
	assert.True(t, errors.Is(domainErr, baseErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same type and message",
			err:    Unauthorized(MsgInvalidToken),
			target: ErrInvalidToken,
			want:   true,
		},
		{
			name:   "same type different message",
			err:    Unauthorized(MsgUserNotFound),
			target: ErrInvalidToken,
			want:   false,
		},
		{
			name:   "type only target",
			err:    Forbidden("Permission 'work_log.view' required"),
			target: &DomainError{Type: ErrorTypeForbidden},
			want:   true,
		},
		{
			name:   "wrapped sentinel",
			err:    fmt.Errorf("login: %w", ErrInvalidCredentials),
			target: ErrInvalidCredentials,
			want:   true,
		},
		{
			name:   "not a domain error",
			err:    NotFound("not found"),
			target: errors.New("regular error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := RateLimited("Too many requests")

	err.WithDetail("limit", 100).WithDetail("retryAfter", 42)

	assert.Equal(t, 100, err.Details["limit"])
	assert.Equal(t, 42, err.Details["retryAfter"])
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", ErrInvalidToken, http.StatusUnauthorized},
		{"forbidden", ErrOrgAccessDenied, http.StatusForbidden},
		{"bad request", ErrOrgContextRequired, http.StatusBadRequest},
		{"not found", NotFound("Route not found"), http.StatusNotFound},
		{"conflict", Conflict("Resource already exists"), http.StatusConflict},
		{"rate limited", RateLimited("Too many requests"), http.StatusTooManyRequests},
		{"body too large", TooLarge("Request body too large"), http.StatusRequestEntityTooLarge},
		{"unavailable", Unavailable(MsgAuthUnavailable, errors.New("timeout")), http.StatusServiceUnavailable},
		{"internal", Internal("boom", nil), http.StatusInternalServerError},
		{"wrapped domain error", fmt.Errorf("outer: %w", ErrSessionInvalid), http.StatusUnauthorized},
		{"plain error", errors.New("regular"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"unauthorized", ErrUserNotFound, IsUnauthorizedError, true},
		{"unauthorized rejects forbidden", ErrOrgAccessDenied, IsUnauthorizedError, false},
		{"forbidden", ErrOrgAccessDenied, IsForbiddenError, true},
		{"validation", ErrOrgContextRequired, IsValidationError, true},
		{"wrapped validation", fmt.Errorf("wrapped: %w", BadRequest("bad")), IsValidationError, true},
		{"not found", NotFound("missing"), IsNotFoundError, true},
		{"conflict", Conflict("dup"), IsConflictError, true},
		{"rate limit", RateLimited("slow down"), IsRateLimitError, true},
		{"unavailable", Unavailable("down", nil), IsUnavailableError, true},
		{"internal", Internal("boom", nil), IsInternalError, true},
		{"regular error", errors.New("regular"), IsInternalError, false},
		{"nil error", nil, IsNotFoundError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"unauthorized", ErrInvalidToken, ErrorTypeUnauthorized},
		{"validation", ErrOrgContextRequired, ErrorTypeValidation},
		{"rate limit", RateLimited("x"), ErrorTypeRateLimit},
		{"regular error", errors.New("regular"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	err := fmt.Errorf("refresh: %w", Unavailable(MsgAuthUnavailable, errors.New("redis: i/o timeout")))
	assert.Equal(t, MsgAuthUnavailable, GetErrorMessage(err))
	assert.Empty(t, GetErrorMessage(errors.New("regular")))
}

func TestGetErrorDetails(t *testing.T) {
	err := BadRequest("Validation failed")
	err.WithDetail("email", "email must be a valid email")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "email must be a valid email", details["email"])

	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
}
