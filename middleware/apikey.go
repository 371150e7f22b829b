package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/propchain/upkeep/repositories"
	"github.com/propchain/upkeep/services"
	"github.com/propchain/upkeep/utils"
)

// APIKeyHeader carries machine credentials
const APIKeyHeader = "X-API-Key"

// APIKeyAuth authenticates requests made with organization API keys
type APIKeyAuth struct {
	tokens       repositories.APITokenRepository
	storeTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// NewAPIKeyAuth creates a new APIKeyAuth
func NewAPIKeyAuth(tokens repositories.APITokenRepository, storeTimeout time.Duration, logger *zap.Logger) *APIKeyAuth {
	return &APIKeyAuth{
		tokens:       tokens,
		storeTimeout: storeTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

// HashAPIKey returns the hex SHA-256 under which a key is stored
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Require rejects requests without a usable API key
func (a *APIKeyAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimiddleware.GetReqID(ctx)

		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			_ = utils.WriteUnauthorized(w, r, "API key required")
			return
		}

		storeCtx, cancel := withStoreTimeout(ctx, a.storeTimeout)
		defer cancel()

		token, err := a.tokens.FindActiveByHash(storeCtx, HashAPIKey(key))
		if errors.Is(err, repositories.ErrNotFound) || (err == nil && token.IsExpired(a.now())) {
			a.logger.Warn("invalid api key",
				zap.String("request_id", requestID),
				zap.String("ip", r.RemoteAddr))
			_ = utils.WriteUnauthorized(w, r, "Invalid or expired API key")
			return
		}
		if err != nil {
			a.logger.Error("api key lookup failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			writeServiceError(w, r, services.Internal(services.MsgAuthUnavailable, err))
			return
		}

		if err := a.tokens.Touch(storeCtx, token.ID); err != nil {
			a.logger.Warn("failed to record api key use",
				zap.String("token_id", token.ID.String()),
				zap.Error(err))
		}

		p := token.Principal()
		ctx = WithAuthContext(ctx, AuthContext{Principal: p, OrganizationID: p.OrganizationID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
