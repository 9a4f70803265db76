package session

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store used in tests and single-node
// development setups. Values never expire.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.sessions[sessionID][key]
	if !ok {
		return nil, ErrNoValue
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, ok := s.sessions[sessionID]
	if !ok {
		kv = make(map[string][]byte)
		s.sessions[sessionID] = kv
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	kv[key] = stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kv, ok := s.sessions[sessionID]; ok {
		delete(kv, key)
	}
	return nil
}
