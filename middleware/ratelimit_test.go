package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/propchain/upkeep/cache"
	"github.com/propchain/upkeep/services/ratelimit"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRateLimiter(clock *testClock) *RateLimitMiddleware {
	store := cache.NewMemoryStore(cache.MemoryOptions{Now: clock.Now})
	limiter := ratelimit.NewRateLimitService(store, zap.NewNop()).WithClock(clock.Now)
	return NewRateLimitMiddleware(limiter, zap.NewNop())
}

func TestPerClientIP(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	handler := newRateLimiter(clock).PerClientIP(2, 15*time.Minute)(okHandler())

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	w := send("203.0.113.7:51000")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2024-03-01T12:15:00Z", w.Header().Get("X-RateLimit-Reset"))

	// a different port is the same client
	w = send("203.0.113.7:51001")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	clock.Advance(5 * time.Minute)
	w = send("203.0.113.7:51002")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "600", w.Header().Get("Retry-After"))
	resp := decodeEnvelope(t, w)
	assert.Equal(t, "Too many authentication attempts, please try again later.", resp.Message)
	assert.EqualValues(t, 600, resp.Details["retryAfter"])

	// other clients keep their own window
	assert.Equal(t, http.StatusOK, send("198.51.100.2:4000").Code)

	clock.Advance(10 * time.Minute)
	assert.Equal(t, http.StatusOK, send("203.0.113.7:51003").Code)
}

func TestPerUser(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newRateLimiter(clock)

	t.Run("limits authenticated principals", func(t *testing.T) {
		handler := withPrincipal(contractor(), m.PerUser(1, time.Minute)(okHandler()))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/work-logs", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/work-logs", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "User rate limit exceeded. Please try again later.", decodeEnvelope(t, w).Message)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
	})

	t.Run("anonymous requests are not counted", func(t *testing.T) {
		handler := m.PerUser(1, time.Minute)(okHandler())
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/work-logs", nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
		}
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "10.0.0.1"
	assert.Equal(t, "10.0.0.1", ClientIP(req))
}
