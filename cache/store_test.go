package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for the memory backend
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type backend struct {
	name    string
	store   Store
	advance func(time.Duration)
}

func backends(t *testing.T) []backend {
	t.Helper()

	clock := newFakeClock()
	mem := NewMemoryStore(MemoryOptions{Now: clock.Now})

	mr := miniredis.RunT(t)
	rs := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rs.Close() })

	return []backend{
		{name: "memory", store: mem, advance: clock.Advance},
		{name: "redis", store: rs, advance: mr.FastForward},
	}
}

func TestStore_SetGet(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.store.Set(ctx, "session:a", []byte(`{"userId":"a"}`), time.Minute))

			got, err := b.store.Get(ctx, "session:a")
			require.NoError(t, err)
			assert.JSONEq(t, `{"userId":"a"}`, string(got))

			_, err = b.store.Get(ctx, "session:missing")
			assert.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.store.Set(ctx, "user:1", []byte("x"), time.Minute))

			b.advance(59 * time.Second)
			_, err := b.store.Get(ctx, "user:1")
			require.NoError(t, err)

			b.advance(2 * time.Second)
			_, err = b.store.Get(ctx, "user:1")
			assert.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.store.Set(ctx, "session:a", []byte("x"), time.Minute))

			require.NoError(t, b.store.Delete(ctx, "session:a"))
			require.NoError(t, b.store.Delete(ctx, "session:a"))

			_, err := b.store.Get(ctx, "session:a")
			assert.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestStore_Expire(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ok, err := b.store.Expire(ctx, "session:missing", time.Hour)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.store.Set(ctx, "session:a", []byte("x"), time.Minute))
			ok, err = b.store.Expire(ctx, "session:a", time.Hour)
			require.NoError(t, err)
			assert.True(t, ok)

			b.advance(30 * time.Minute)
			_, err = b.store.Get(ctx, "session:a")
			assert.NoError(t, err)
		})
	}
}

func TestStore_ReplaceKeepsTTL(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ok, err := b.store.Replace(ctx, "session:missing", []byte("y"))
			require.NoError(t, err)
			assert.False(t, ok)
			_, err = b.store.Get(ctx, "session:missing")
			assert.ErrorIs(t, err, ErrMiss)

			require.NoError(t, b.store.Set(ctx, "session:a", []byte("x"), time.Minute))
			b.advance(40 * time.Second)

			ok, err = b.store.Replace(ctx, "session:a", []byte("y"))
			require.NoError(t, err)
			assert.True(t, ok)

			got, err := b.store.Get(ctx, "session:a")
			require.NoError(t, err)
			assert.Equal(t, "y", string(got))

			b.advance(30 * time.Second)
			_, err = b.store.Get(ctx, "session:a")
			assert.ErrorIs(t, err, ErrMiss, "replace must not extend the TTL")
		})
	}
}

func TestStore_Incr(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			count, ttl, err := b.store.Incr(ctx, "rate_limit:user:1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
			assert.Equal(t, time.Minute, ttl)

			b.advance(20 * time.Second)
			count, ttl, err = b.store.Incr(ctx, "rate_limit:user:1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
			assert.InDelta(t, float64(40*time.Second), float64(ttl), float64(time.Second), "window starts at the first increment")

			b.advance(41 * time.Second)
			count, _, err = b.store.Incr(ctx, "rate_limit:user:1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count, "a new window starts after expiry")
		})
	}
}

func TestStore_Keys(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.store.Set(ctx, "session:a", []byte("1"), time.Minute))
			require.NoError(t, b.store.Set(ctx, "session:b", []byte("2"), time.Minute))
			require.NoError(t, b.store.Set(ctx, "user:a", []byte("3"), time.Minute))

			keys, err := b.store.Keys(ctx, "session:")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"session:a", "session:b"}, keys)
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})

	type payload struct {
		UserID string `json:"userId"`
	}

	require.NoError(t, SetJSON(ctx, store, "k", payload{UserID: "u1"}, time.Minute))

	var got payload
	require.NoError(t, GetJSON(ctx, store, "k", &got))
	assert.Equal(t, "u1", got.UserID)

	ok, err := ReplaceJSON(ctx, store, "k", payload{UserID: "u2"})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, GetJSON(ctx, store, "k", &got))
	assert.Equal(t, "u2", got.UserID)

	require.NoError(t, store.Set(ctx, "bad", []byte("{"), 0))
	err = GetJSON(ctx, store, "bad", &got)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	mr.Close()

	ctx := context.Background()
	assert.Error(t, store.Ping(ctx))

	_, err := store.Get(ctx, "session:a")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)

	_, _, err = store.Incr(ctx, "rate_limit:user:1", time.Minute)
	assert.Error(t, err)
}
