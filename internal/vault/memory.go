package vault

import (
	"context"
	"errors"
	"sync"
)

// ErrDuplicateToken signals a (highly unlikely) token collision; Issue
// retries with fresh entropy.
var ErrDuplicateToken = errors.New("vault: duplicate token")

// InMemoryStore keeps vault entries in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	byToken map[string]Entry
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byToken: make(map[string]Entry)}
}

func (s *InMemoryStore) Save(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byToken[e.Token]; ok {
		return ErrDuplicateToken
	}
	s.byToken[e.Token] = e
	return nil
}

func (s *InMemoryStore) FindByToken(ctx context.Context, token string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byToken[token]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}
