package sca

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore implements AuthorisationStore with in-process concurrency
// safety. Suitable for tests and single-node deployments without Postgres.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Authorisation
}

var _ AuthorisationStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]*Authorisation)}
}

func (s *InMemoryStore) Create(ctx context.Context, a *Authorisation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[a.ID]; ok {
		return ErrConflict
	}
	cp := *a
	s.items[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, id string) (*Authorisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (s *InMemoryStore) FindByParent(ctx context.Context, parentType AuthorisationType, parentID string) ([]*Authorisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Authorisation
	for _, stored := range s.items {
		if stored.ParentType == parentType && stored.ParentExternalID == parentID {
			cp := *stored
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *InMemoryStore) Update(ctx context.Context, a *Authorisation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[a.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != a.Version {
		return ErrConflict
	}
	a.Version++
	cp := *a
	s.items[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListNonTerminal(ctx context.Context) ([]*Authorisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Authorisation
	for _, stored := range s.items {
		if !stored.ScaStatus.IsTerminal() {
			cp := *stored
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
