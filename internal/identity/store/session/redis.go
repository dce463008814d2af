// Package session stores login sessions. A session existing in the store is
// what makes its JWT acceptable; deleting it (logout) revokes the token
// before its expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tracker/pkg/platform/sentinel"
)

const keyPrefix = "session:"

// Session records one login.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// RedisStore implements the session store over redis with per-key TTL, so
// expired sessions vanish without a sweeper.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a session store backed by client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Save stores the session until its expiry.
func (s *RedisStore) Save(ctx context.Context, session Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	if err := s.client.Set(ctx, keyPrefix+session.ID, session.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns the user ID behind a session, or sentinel.ErrNotFound when the
// session does not exist or has expired.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, error) {
	userID, err := s.client.Get(ctx, keyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	return userID, nil
}

// Delete revokes a session. Deleting a missing session is not an error.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
