package consent

import (
	"context"
	"sync"

	"xs2a.org/internal/sca"
)

// InMemoryStore keeps consents in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Consent
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]*Consent)}
}

func (s *InMemoryStore) Create(ctx context.Context, c *Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[c.ID]; ok {
		return sca.ErrConflict
	}
	cp := *c
	s.items[c.ID] = &cp
	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, id string) (*Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.items[id]
	if !ok {
		return nil, sca.ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (s *InMemoryStore) Update(ctx context.Context, c *Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[c.ID]; !ok {
		return sca.ErrNotFound
	}
	cp := *c
	s.items[c.ID] = &cp
	return nil
}
