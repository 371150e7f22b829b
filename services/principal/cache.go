// Package principal caches resolved principals so the Auth Gate does not
// hit the credential store on every request.
package principal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/propchain/upkeep/cache"
	"github.com/propchain/upkeep/models"
)

const keyPrefix = "user:"

// Key returns the store key for a user id
func Key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// entry carries its own timestamp so staleness does not depend on the
// backend honouring the TTL
type entry struct {
	Principal *models.Principal `json:"principal"`
	CachedAt  time.Time         `json:"cachedAt"`
}

// Options configures a Cache
type Options struct {
	TTL time.Duration
	Now func() time.Time
}

// Cache stores principal snapshots keyed by user id
type Cache struct {
	store  cache.Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewCache creates a principal Cache. A zero TTL disables caching.
func NewCache(store cache.Store, opts Options, logger *zap.Logger) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{store: store, ttl: opts.TTL, now: opts.Now, logger: logger}
}

// Get returns the cached principal. Entries older than the TTL are reported
// as a miss even if the backend still holds them.
func (c *Cache) Get(ctx context.Context, userID uuid.UUID) (*models.Principal, bool, error) {
	if c.ttl <= 0 {
		return nil, false, nil
	}

	data, err := c.store.Get(ctx, Key(userID))
	if errors.Is(err, cache.ErrMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("principal cache get: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Principal == nil {
		c.logger.Warn("discarding unreadable principal cache entry",
			zap.String("user_id", userID.String()), zap.Error(err))
		return nil, false, nil
	}
	if c.now().Sub(e.CachedAt) >= c.ttl {
		return nil, false, nil
	}
	return e.Principal, true, nil
}

// Put stores a snapshot of p
func (c *Cache) Put(ctx context.Context, p *models.Principal) error {
	if c.ttl <= 0 {
		return nil
	}
	e := entry{Principal: p.Clone(), CachedAt: c.now()}
	if err := cache.SetJSON(ctx, c.store, Key(p.UserID), e, c.ttl); err != nil {
		return fmt.Errorf("principal cache put: %w", err)
	}
	return nil
}

// Invalidate drops the cached principal for userID
func (c *Cache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.store.Delete(ctx, Key(userID)); err != nil {
		return fmt.Errorf("principal cache invalidate: %w", err)
	}
	return nil
}
