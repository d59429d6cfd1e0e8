package basket

import (
	"context"
	"sync"

	"xs2a.org/internal/sca"
)

// InMemoryStore keeps baskets in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Basket
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]*Basket)}
}

func (s *InMemoryStore) Create(ctx context.Context, b *Basket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[b.ID]; ok {
		return sca.ErrConflict
	}
	cp := *b
	s.items[b.ID] = &cp
	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, id string) (*Basket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.items[id]
	if !ok {
		return nil, sca.ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (s *InMemoryStore) Update(ctx context.Context, b *Basket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[b.ID]; !ok {
		return sca.ErrNotFound
	}
	cp := *b
	s.items[b.ID] = &cp
	return nil
}
