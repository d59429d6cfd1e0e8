package payment

import (
	"context"
	"sync"

	"xs2a.org/internal/sca"
)

// InMemoryStore keeps payments in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Payment
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]*Payment)}
}

func (s *InMemoryStore) Create(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; ok {
		return sca.ErrConflict
	}
	cp := *p
	s.items[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, id string) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.items[id]
	if !ok {
		return nil, sca.ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (s *InMemoryStore) Update(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; !ok {
		return sca.ErrNotFound
	}
	cp := *p
	s.items[p.ID] = &cp
	return nil
}
