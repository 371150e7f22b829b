package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/propchain/upkeep/models"
	"github.com/propchain/upkeep/services"
	"github.com/propchain/upkeep/services/permission"
	"github.com/propchain/upkeep/utils"
)

// Authenticator resolves an access token into a principal
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Principal, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	authenticator Authenticator
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator Authenticator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// RequireAuth is a middleware that requires a valid access token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimiddleware.GetReqID(ctx)

		token := BearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, r, services.MsgNoToken)
			return
		}

		p, err := m.authenticator.Authenticate(ctx, token)
		if err != nil {
			if services.IsUnauthorizedError(err) {
				m.logger.Warn("authentication failed",
					zap.String("request_id", requestID),
					zap.String("ip", r.RemoteAddr),
					zap.Error(err))
			} else {
				m.logger.Error("authentication error",
					zap.String("request_id", requestID),
					zap.Error(err))
			}
			writeServiceError(w, r, err)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", p.UserID.String()),
			zap.String("email", p.Email))

		ctx = WithAuthContext(ctx, AuthContext{Principal: p, OrganizationID: p.OrganizationID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through untouched
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		p, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			m.logger.Debug("optional authentication skipped",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithAuthContext(r.Context(), AuthContext{Principal: p, OrganizationID: p.OrganizationID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission is a middleware that requires the principal to hold perm
func (m *AuthMiddleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipalFromContext(r.Context())
			if p == nil {
				_ = utils.WriteUnauthorized(w, r, services.MsgAuthRequired)
				return
			}

			if !permission.HasPermission(p.Permissions, perm) {
				m.logger.Warn("permission denied",
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.String("user_id", p.UserID.String()),
					zap.String("required_permission", perm),
					zap.Strings("user_permissions", p.Permissions))
				_ = utils.WriteForbidden(w, r, fmt.Sprintf("Permission '%s' required", perm))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
