// Package cache holds the key-value store behind sessions, cached
// principals and rate-limit counters. Redis backs deployed services; the
// in-memory backend serves tests and the standalone mock auth service.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when a key is absent or expired
var ErrMiss = errors.New("cache: key not found")

// Store is the contract both backends satisfy. Errors other than ErrMiss
// mean the store itself failed.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value with a TTL; a zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Replace overwrites an existing key and keeps its remaining TTL.
	// It reports false when the key does not exist.
	Replace(ctx context.Context, key string, value []byte) (bool, error)
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	// Expire resets the TTL and reports false when the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Incr increments a counter, starting its window on the first increment,
	// and returns the new count with the time left in the window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// GetJSON loads key and decodes it into dst
func GetJSON(ctx context.Context, s Store, key string, dst interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key
func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// ReplaceJSON encodes v and overwrites key, keeping its TTL
func ReplaceJSON(ctx context.Context, s Store, key string, v interface{}) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return s.Replace(ctx, key, data)
}
