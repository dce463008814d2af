package user

import (
	"context"
	"sync"

	"tracker/internal/identity"
	"tracker/pkg/platform/sentinel"
)

// InMemoryStore is a process-local user store used in unit tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]identity.User
}

// NewInMemoryStore creates an empty in-memory user store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]identity.User)}
}

// Get loads one user by ID.
func (s *InMemoryStore) Get(_ context.Context, id string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return identity.User{}, sentinel.ErrNotFound
	}
	return user, nil
}

// GetMany loads shallow identities for a set of user IDs.
func (s *InMemoryStore) GetMany(_ context.Context, ids []string) (map[string]identity.Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make(map[string]identity.Ref, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			refs[id] = user.Ref()
		}
	}
	return refs, nil
}

// Ensure upserts a user.
func (s *InMemoryStore) Ensure(_ context.Context, user identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}
