package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/propchain/upkeep/cache"
)

// Key prefixes for the fixed-window counters
const (
	UserKeyPrefix  = "rate_limit:user:"
	LoginKeyPrefix = "rate_limit:login:"
)

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Count     int64
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// RetryAfter returns the time left until the window resets, rounded up to a second
func (r *RateLimitResult) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

// RateLimitService counts requests per key in fixed windows held in the
// shared cache store, so every instance sees the same counters.
type RateLimitService struct {
	store  cache.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(store cache.Store, logger *zap.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *RateLimitService) WithClock(now func() time.Time) *RateLimitService {
	s.now = now
	return s
}

// Now returns the limiter's current time
func (s *RateLimitService) Now() time.Time {
	return s.now()
}

// CheckLimit counts one request against key. When the store fails the
// request is allowed: an outage of the counter store must not block traffic.
func (s *RateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) RateLimitResult {
	now := s.now()
	if limit <= 0 {
		return RateLimitResult{Limit: limit, Remaining: limit, ResetAt: now.Add(window), Allowed: true}
	}

	count, ttl, err := s.store.Incr(ctx, key, window)
	if err != nil {
		s.logger.Error("rate limit check failed, allowing request",
			zap.String("key", key),
			zap.Error(err))
		return RateLimitResult{
			Limit:     limit,
			Remaining: limit,
			ResetAt:   now.Add(window),
			Allowed:   true,
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if ttl <= 0 {
		ttl = window
	}

	return RateLimitResult{
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(ttl),
		Allowed:   count <= int64(limit),
	}
}
