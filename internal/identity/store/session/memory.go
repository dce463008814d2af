package session

import (
	"context"
	"sync"
	"time"

	"tracker/pkg/platform/sentinel"
)

// InMemoryStore is a process-local session store used in unit tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]Session)}
}

// Save stores the session.
func (s *InMemoryStore) Save(_ context.Context, session Session) error {
	if !session.ExpiresAt.After(time.Now()) {
		return sentinel.ErrExpired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

// Get returns the user ID behind a session.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok || !session.ExpiresAt.After(time.Now()) {
		return "", sentinel.ErrNotFound
	}
	return session.UserID, nil
}

// Delete revokes a session.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
