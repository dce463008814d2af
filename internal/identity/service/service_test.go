package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"tracker/internal/identity"
	"tracker/internal/identity/store/session"
	"tracker/internal/identity/store/user"
	dErrors "tracker/pkg/domain-errors"
)

type IdentityServiceSuite struct {
	suite.Suite
	users    *user.InMemoryStore
	sessions *session.InMemoryStore
	service  *Service
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.users = user.NewInMemoryStore()
	s.sessions = session.NewInMemoryStore()
	s.service = New(s.users, s.sessions, Config{
		SigningKey: "test-signing-key",
		DevMode:    true,
		SessionTTL: time.Hour,
	})
}

func (s *IdentityServiceSuite) TestLoginDevAccounts() {
	ctx := context.Background()

	token, loggedIn, err := s.service.Login(ctx, "admin", "admin")
	s.Require().NoError(err)
	s.NotEmpty(token)
	s.Equal(AdminUser.ID, loggedIn.ID)
	s.True(loggedIn.HasRole(identity.RoleAdmin))

	token, loggedIn, err = s.service.Login(ctx, "user", "user")
	s.Require().NoError(err)
	s.NotEmpty(token)
	s.Equal(DemoUser.ID, loggedIn.ID)
	s.False(loggedIn.HasRole(identity.RoleAdmin))

	stored, err := s.users.Get(ctx, DemoUser.ID)
	s.Require().NoError(err)
	s.Equal(DemoUser.Name, stored.Name)
}

func (s *IdentityServiceSuite) TestLoginRejectsBadCredentials() {
	ctx := context.Background()

	for _, creds := range [][2]string{
		{"admin", "wrong"},
		{"user", ""},
		{"nobody", "nobody"},
	} {
		_, _, err := s.service.Login(ctx, creds[0], creds[1])
		s.Require().Error(err)
		s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	}
}

func (s *IdentityServiceSuite) TestLoginProdModeOnlyAdminPassword() {
	s.service = New(s.users, s.sessions, Config{
		SigningKey:    "test-signing-key",
		AdminPassword: "s3cret",
		SessionTTL:    time.Hour,
	})
	ctx := context.Background()

	_, _, err := s.service.Login(ctx, "admin", "admin")
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	_, _, err = s.service.Login(ctx, "user", "user")
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	_, loggedIn, err := s.service.Login(ctx, "admin", "s3cret")
	s.Require().NoError(err)
	s.Equal(AdminUser.ID, loggedIn.ID)
}

func (s *IdentityServiceSuite) TestValidateRoundTrip() {
	ctx := context.Background()
	token, _, err := s.service.Login(ctx, "admin", "admin")
	s.Require().NoError(err)

	validated, sessionID, err := s.service.Validate(ctx, token)
	s.Require().NoError(err)
	s.NotEmpty(sessionID)
	s.Equal(AdminUser.ID, validated.ID)
	s.Equal(AdminUser.Name, validated.Name)
	s.True(validated.HasRole(identity.RoleAdmin))
}

func (s *IdentityServiceSuite) TestValidateRejectsTamperedToken() {
	ctx := context.Background()
	token, _, err := s.service.Login(ctx, "user", "user")
	s.Require().NoError(err)

	_, _, err = s.service.Validate(ctx, token+"x")
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	_, _, err = s.service.Validate(ctx, "not-a-token")
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func (s *IdentityServiceSuite) TestValidateRejectsForeignSignature() {
	ctx := context.Background()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    DemoUser.ID,
		Name:      DemoUser.Name,
		SessionID: "forged-session",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("some-other-key"))
	s.Require().NoError(err)

	_, _, err = s.service.Validate(ctx, signed)
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func (s *IdentityServiceSuite) TestValidateRejectsExpiredToken() {
	ctx := context.Background()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    DemoUser.ID,
		SessionID: "sess-expired",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	s.Require().NoError(err)

	_, _, err = s.service.Validate(ctx, signed)
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	s.Contains(err.Error(), "expired")
}

func (s *IdentityServiceSuite) TestLogoutRevokesSession() {
	ctx := context.Background()
	token, _, err := s.service.Login(ctx, "user", "user")
	s.Require().NoError(err)

	_, sessionID, err := s.service.Validate(ctx, token)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Logout(ctx, sessionID))

	// The signature is still valid but the session is gone.
	_, _, err = s.service.Validate(ctx, token)
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func (s *IdentityServiceSuite) TestLogoutRequiresSessionID() {
	err := s.service.Logout(context.Background(), "")
	s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func (s *IdentityServiceSuite) TestSeedUsers() {
	ctx := context.Background()
	s.Require().NoError(s.service.SeedUsers(ctx))

	refs, err := s.users.GetMany(ctx, []string{AdminUser.ID, DemoUser.ID})
	s.Require().NoError(err)
	s.Len(refs, 2)
	s.Equal(AdminUser.Name, refs[AdminUser.ID].Name)
}
