package claims

import (
	"context"
	"sync"

	"docroute-api/internal/domain"
)

// MemoryStore is an in-memory Claims Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.Claims
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.Claims)}
}

// Get retrieves the claims record for an identity
func (s *MemoryStore) Get(ctx context.Context, uid string) (domain.Claims, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.records[uid]
	if !ok {
		return domain.Claims{}, ErrNotFound
	}
	return c, nil
}

// Set overwrites the claims record for an identity
func (s *MemoryStore) Set(ctx context.Context, uid string, claims domain.Claims) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[uid] = claims
	return nil
}
