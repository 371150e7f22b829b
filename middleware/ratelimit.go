package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/propchain/upkeep/services/ratelimit"
	"github.com/propchain/upkeep/utils"
)

const (
	userRateLimitMessage  = "User rate limit exceeded. Please try again later."
	loginRateLimitMessage = "Too many authentication attempts, please try again later."
)

// RateLimitMiddleware enforces fixed-window request limits
type RateLimitMiddleware struct {
	limiter *ratelimit.RateLimitService
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware
func NewRateLimitMiddleware(limiter *ratelimit.RateLimitService, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// PerUser limits authenticated principals. Requests without a principal are
// not counted.
func (m *RateLimitMiddleware) PerUser(limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipalFromContext(r.Context())
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := ratelimit.UserKeyPrefix + p.UserID.String()
			if m.enforce(w, r, key, limit, window, userRateLimitMessage) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// PerClientIP limits by remote address; used in front of login
func (m *RateLimitMiddleware) PerClientIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.LoginKeyPrefix + ClientIP(r)
			if m.enforce(w, r, key, limit, window, loginRateLimitMessage) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// enforce counts the request, sets the rate limit headers and writes a 429
// when the window is exhausted. It reports whether the request may proceed.
func (m *RateLimitMiddleware) enforce(w http.ResponseWriter, r *http.Request, key string, limit int, window time.Duration, message string) bool {
	result := m.limiter.CheckLimit(r.Context(), key, limit, window)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", result.ResetAt.UTC().Format(time.RFC3339))

	if result.Allowed {
		return true
	}

	retryAfter := int(result.RetryAfter(m.limiter.Now()) / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	m.logger.Warn("rate limit exceeded",
		zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		zap.String("key", key),
		zap.Int64("count", result.Count),
		zap.Int("limit", limit))

	_ = utils.WriteTooManyRequests(w, r, message, map[string]interface{}{
		"retryAfter": retryAfter,
	})
	return false
}

// ClientIP returns the remote address without its port. Forwarding headers
// only count when the router mounts chi's RealIP, which it does for a
// trusted proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
