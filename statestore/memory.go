// Package statestore provides transient key-value stores for handshake
// state: an in-process store for tests and single-node deployments and
// a Redis-backed store for everything else. Entries expire after their
// TTL; an expired entry is indistinguishable from a missing one.
package statestore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultMemoryTTL        = 10 * time.Minute
	defaultMemoryMaxEntries = 10000
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process TTL map. Expired entries are dropped
// lazily on read and swept opportunistically on write.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	nowFn      func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithMaxEntries(max int) MemoryOption {
	return func(s *MemoryStore) {
		if max > 0 {
			s.maxEntries = max
		}
	}
}

func NewMemoryStore(options ...MemoryOption) *MemoryStore {
	store := &MemoryStore{
		entries:    make(map[string]memoryEntry),
		maxEntries: defaultMemoryMaxEntries,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return fmt.Errorf("statestore: memory store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("statestore: key is required")
	}
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}

	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.entries) >= s.maxEntries {
		if _, exists := s.entries[key]; !exists {
			return fmt.Errorf("statestore: memory store is full (%d entries)", s.maxEntries)
		}
	}
	s.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("statestore: memory store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("statestore: key is required")
	}

	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.After(now) {
		delete(s.entries, key)
		return nil, nil
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("statestore: memory store is not configured")
	}
	s.mu.Lock()
	delete(s.entries, strings.TrimSpace(key))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for key, entry := range s.entries {
		if !entry.expiresAt.After(now) {
			delete(s.entries, key)
		}
	}
}
