// Package session stores login sessions in the shared cache store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/propchain/upkeep/cache"
	"github.com/propchain/upkeep/models"
)

const keyPrefix = "session:"

// Key returns the store key for a session id
func Key(id string) string {
	return keyPrefix + id
}

// Manager reads and writes session records. Every store error is returned
// to the caller.
type Manager struct {
	store  cache.Store
	logger *zap.Logger
}

// NewManager creates a session Manager
func NewManager(store cache.Store, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// SetSession stores the session under id for ttl
func (m *Manager) SetSession(ctx context.Context, id string, s *models.Session, ttl time.Duration) error {
	if err := cache.SetJSON(ctx, m.store, Key(id), s, ttl); err != nil {
		m.logger.Error("failed to store session", zap.String("session_key", id), zap.Error(err))
		return fmt.Errorf("store session: %w", err)
	}
	m.logger.Debug("session stored", zap.String("session_key", id), zap.Duration("ttl", ttl))
	return nil
}

// GetSession returns nil, nil when no live session exists
func (m *Manager) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := cache.GetJSON(ctx, m.store, Key(id), &s)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		m.logger.Error("failed to get session", zap.String("session_key", id), zap.Error(err))
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes the session; deleting a missing session is not an error
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, Key(id)); err != nil {
		m.logger.Error("failed to delete session", zap.String("session_key", id), zap.Error(err))
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Debug("session deleted", zap.String("session_key", id))
	return nil
}

// ExtendSession resets the session TTL and reports whether the session existed
func (m *Manager) ExtendSession(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := m.store.Expire(ctx, Key(id), ttl)
	if err != nil {
		m.logger.Error("failed to extend session", zap.String("session_key", id), zap.Error(err))
		return false, fmt.Errorf("extend session: %w", err)
	}
	return ok, nil
}

// Touch records activity on a live session without changing its TTL.
// Concurrent touches overwrite each other; the last write wins.
func (m *Manager) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	s, err := m.GetSession(ctx, id)
	if err != nil || s == nil {
		return false, err
	}
	s.LastActivity = at
	ok, err := cache.ReplaceJSON(ctx, m.store, Key(id), s)
	if err != nil {
		m.logger.Error("failed to touch session", zap.String("session_key", id), zap.Error(err))
		return false, fmt.Errorf("touch session: %w", err)
	}
	return ok, nil
}

// Entry pairs a session with the id it is stored under
type Entry struct {
	ID      string
	Session *models.Session
}

// List returns every live session ordered by creation time
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	keys, err := m.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, keyPrefix)
		s, err := m.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if s == nil {
			// expired between SCAN and GET
			continue
		}
		entries = append(entries, Entry{ID: id, Session: s})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Session.CreatedAt.Before(entries[j].Session.CreatedAt)
	})
	return entries, nil
}
