package oauthstate

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store for tests and single-instance runs
// without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Save(_ context.Context, key string, st State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{state: st, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, key string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	delete(s.entries, key)
	if time.Now().After(e.expiresAt) {
		return nil, nil
	}
	st := e.state
	return &st, nil
}
