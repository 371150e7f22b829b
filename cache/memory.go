package cache

import (
	"container/list"
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultMaxEntries = 10000

// MemoryOptions configures a MemoryStore
type MemoryOptions struct {
	// MaxEntries caps the number of keys; the least recently used key is
	// evicted beyond it, live sessions and counters included
	MaxEntries int
	Now        func() time.Time
	Logger     *zap.Logger
}

// memoryEntry represents a single entry with an optional expiry
type memoryEntry struct {
	value     []byte
	expiresAt time.Time     // zero means no expiry
	element   *list.Element // For LRU tracking
}

func (e *memoryEntry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process LRU store with per-key TTL.
// Thread-safe implementation using sync.Mutex
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	lruList    *list.List
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger
}

// NewMemoryStore creates a MemoryStore
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		lruList:    list.New(),
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		logger:     opts.Logger,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.lookup(key)
	if entry == nil {
		return nil, ErrMiss
	}
	s.lruList.MoveToFront(entry.element)
	return append([]byte(nil), entry.value...), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.put(key, append([]byte(nil), value...), expiresAt)
	return nil
}

func (s *MemoryStore) Replace(ctx context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.lookup(key)
	if entry == nil {
		return false, nil
	}
	entry.value = append([]byte(nil), value...)
	s.lruList.MoveToFront(entry.element)
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeEntry(key)
	return nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.lookup(key)
	if entry == nil {
		return false, nil
	}
	if ttl <= 0 {
		s.removeEntry(key)
		return true, nil
	}
	entry.expiresAt = s.now().Add(ttl)
	return true, nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if window <= 0 {
		window = time.Second
	}
	now := s.now()

	entry := s.lookup(key)
	if entry == nil {
		s.put(key, []byte("1"), now.Add(window))
		return 1, window, nil
	}

	count, err := strconv.ParseInt(string(entry.value), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	count++
	entry.value = []byte(strconv.FormatInt(count, 10))
	if entry.expiresAt.IsZero() {
		entry.expiresAt = now.Add(window)
	}
	s.lruList.MoveToFront(entry.element)
	return count, entry.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := make([]string, 0)
	for key, entry := range s.entries {
		if strings.HasPrefix(key, prefix) && !entry.isExpired(now) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*memoryEntry)
	s.lruList.Init()
	return nil
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lruList.Len()
}

// CleanupExpired removes all expired entries
func (s *MemoryStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expiredKeys := make([]string, 0)
	for key, entry := range s.entries {
		if entry.isExpired(now) {
			expiredKeys = append(expiredKeys, key)
		}
	}
	for _, key := range expiredKeys {
		s.removeEntry(key)
	}
	return len(expiredKeys)
}

// StartCleanupWorker periodically removes expired entries until ctx is done
func (s *MemoryStore) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanupExpired()
		case <-ctx.Done():
			return
		}
	}
}

// lookup returns the live entry for key, dropping it if expired (lock held)
func (s *MemoryStore) lookup(key string) *memoryEntry {
	entry, exists := s.entries[key]
	if !exists {
		return nil
	}
	if entry.isExpired(s.now()) {
		s.removeEntry(key)
		return nil
	}
	return entry
}

// put inserts or overwrites key, evicting the least recently used entry when full (lock held)
func (s *MemoryStore) put(key string, value []byte, expiresAt time.Time) {
	if entry, exists := s.entries[key]; exists {
		entry.value = value
		entry.expiresAt = expiresAt
		s.lruList.MoveToFront(entry.element)
		return
	}

	if s.lruList.Len() >= s.maxEntries {
		s.evictLRU()
	}

	entry := &memoryEntry{value: value, expiresAt: expiresAt}
	entry.element = s.lruList.PushFront(key)
	s.entries[key] = entry
}

// removeEntry removes an entry from the store (lock held)
func (s *MemoryStore) removeEntry(key string) {
	if entry, exists := s.entries[key]; exists {
		s.lruList.Remove(entry.element)
		delete(s.entries, key)
	}
}

// evictLRU evicts the least recently used entry (lock held)
func (s *MemoryStore) evictLRU() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	expired := s.entries[key].isExpired(s.now())
	s.lruList.Remove(back)
	delete(s.entries, key)

	if !expired {
		s.logger.Warn("memory store full, evicted least recently used key",
			zap.String("key", key),
			zap.Int("max_entries", s.maxEntries))
	}
}

var _ Store = (*MemoryStore)(nil)
