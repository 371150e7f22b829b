package handlers

import (
	"errors"
	"net/http"
	"syscall"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/propchain/upkeep/middleware"
	"github.com/propchain/upkeep/services"
	"github.com/propchain/upkeep/utils"
)

const genericErrorMessage = "An unexpected error occurred"

// ErrorResponder renders service errors as the standard error envelope
type ErrorResponder struct {
	logger      *zap.Logger
	development bool
}

// NewErrorResponder creates an ErrorResponder. Development responders add
// the error chain to 5xx bodies.
func NewErrorResponder(logger *zap.Logger, environment string) *ErrorResponder {
	return &ErrorResponder{
		logger:      logger,
		development: environment == "development" || environment == "dev",
	}
}

// HandleServiceError maps domain errors to HTTP responses
func (e *ErrorResponder) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	err = translateDatabaseError(err)
	status := services.StatusCode(err)

	message := services.GetErrorMessage(err)
	if message == "" {
		message = genericErrorMessage
	}

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("ip", r.RemoteAddr),
		zap.Int("status", status),
		zap.Error(err),
	}
	if p := middleware.GetPrincipalFromContext(r.Context()); p != nil {
		fields = append(fields,
			zap.String("user_id", p.UserID.String()),
			zap.String("organization_id", p.OrganizationID.String()))
	}
	if status >= http.StatusInternalServerError {
		e.logger.Error("server error occurred", fields...)
	} else {
		e.logger.Warn("client error occurred", fields...)
	}

	resp := utils.NewErrorResponse(r, status, message, services.GetErrorDetails(err))
	if e.development && status >= http.StatusInternalServerError {
		resp.Stack = err.Error()
	}
	if werr := utils.WriteJSON(w, status, resp); werr != nil {
		e.logger.Error("failed to write error response", zap.Error(werr))
	}
}

// HandleDecodeError answers a request body that failed to decode or validate
func (e *ErrorResponder) HandleDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var werr error
	switch {
	case utils.IsValidationError(err):
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		werr = utils.WriteBadRequest(w, r, "Validation failed", details)
	case errors.Is(err, utils.ErrEmptyBody):
		werr = utils.WriteBadRequest(w, r, "Request body is required", nil)
	default:
		werr = utils.WriteBadRequest(w, r, "Invalid JSON body", nil)
	}
	if werr != nil {
		e.logger.Error("failed to write validation error response", zap.Error(werr))
	}
}

// translateDatabaseError turns driver errors that reached the handler into
// domain errors. Client-facing domain errors pass through untouched.
func translateDatabaseError(err error) error {
	switch services.GetErrorType(err) {
	case "", services.ErrorTypeInternal:
	default:
		return err
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return services.Unavailable("Database connection failed", err)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return services.NewDomainError(services.ErrorTypeConflict, "Resource already exists", err)
	case "23503":
		return services.NewDomainError(services.ErrorTypeValidation, "Referenced resource does not exist", err)
	case "23514":
		return services.NewDomainError(services.ErrorTypeValidation, "Data validation failed", err)
	case "42P01", "42703":
		return services.Internal("Database schema error", err)
	}
	return err
}
