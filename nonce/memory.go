package nonce

import (
	"context"
	"sync"
)

// MemoryStore keeps counters in process
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]uint64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]uint64)}
}

func (s *MemoryStore) Reserve(_ context.Context, key string, remote uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := max(s.counters[key], remote)
	s.counters[key] = n + 1
	return n, nil
}

func (s *MemoryStore) Advance(_ context.Context, key string, next uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next > s.counters[key] {
		s.counters[key] = next
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, key)
	return nil
}
