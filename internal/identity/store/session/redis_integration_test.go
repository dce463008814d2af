//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tracker/internal/identity/store/session"
	"tracker/pkg/platform/sentinel"
	"tracker/pkg/testutil/containers"
)

type RedisSessionSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisSessionSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSessionSuite))
}

func (s *RedisSessionSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = session.NewRedisStore(s.redis.Client)
}

func (s *RedisSessionSuite) TearDownSuite() {
	_ = s.redis.Client.Close()
	_ = s.redis.Container.Terminate(context.Background())
}

func (s *RedisSessionSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSessionSuite) TestSaveAndGet() {
	ctx := context.Background()
	sess := session.Session{
		ID:        uuid.NewString(),
		UserID:    "user-a",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	s.Require().NoError(s.store.Save(ctx, sess))

	userID, err := s.store.Get(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal("user-a", userID)
}

func (s *RedisSessionSuite) TestDeleteRevokes() {
	ctx := context.Background()
	sess := session.Session{
		ID:        uuid.NewString(),
		UserID:    "user-a",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	s.Require().NoError(s.store.Save(ctx, sess))
	s.Require().NoError(s.store.Delete(ctx, sess.ID))

	_, err := s.store.Get(ctx, sess.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisSessionSuite) TestExpiryEnforcedByTTL() {
	ctx := context.Background()
	sess := session.Session{
		ID:        uuid.NewString(),
		UserID:    "user-a",
		ExpiresAt: time.Now().Add(time.Second),
	}
	s.Require().NoError(s.store.Save(ctx, sess))

	time.Sleep(1500 * time.Millisecond)

	_, err := s.store.Get(ctx, sess.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
