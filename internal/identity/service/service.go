// Package service implements credentials login and session token handling.
//
// The credentials scheme mirrors a dev/demo deployment: in dev mode the
// fixed admin:admin and user:user accounts work; outside dev mode only the
// admin account with the configured admin password can log in. This is not a
// production identity provider and is kept deliberately small.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tracker/internal/identity"
	"tracker/internal/identity/store/session"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/platform/sentinel"
)

// Seeded accounts, matching the demo dataset.
var (
	AdminUser = identity.User{ID: "admin-id", Name: "Admin", Roles: []identity.Role{identity.RoleAdmin}}
	DemoUser  = identity.User{ID: "user-id", Name: "User"}
)

// UserStore persists user identities.
type UserStore interface {
	Get(ctx context.Context, id string) (identity.User, error)
	Ensure(ctx context.Context, user identity.User) error
}

// SessionStore records live sessions; presence in the store is what keeps a
// token valid.
type SessionStore interface {
	Save(ctx context.Context, s session.Session) error
	Get(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// Config carries the identity service settings.
type Config struct {
	SigningKey    string
	AdminPassword string
	DevMode       bool
	SessionTTL    time.Duration
}

// Claims is the JWT payload of a session token.
type Claims struct {
	UserID    string   `json:"user_id"`
	Name      string   `json:"name"`
	Roles     []string `json:"roles,omitempty"`
	SessionID string   `json:"session_id"`
	jwt.RegisteredClaims
}

// Service issues and validates session tokens.
type Service struct {
	users      UserStore
	sessions   SessionStore
	signingKey []byte
	cfg        Config
}

// New creates the identity service.
func New(users UserStore, sessions SessionStore, cfg Config) *Service {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &Service{
		users:      users,
		sessions:   sessions,
		signingKey: []byte(cfg.SigningKey),
		cfg:        cfg,
	}
}

// Login checks credentials, records a session and returns a signed token
// plus the authenticated user.
func (s *Service) Login(ctx context.Context, username, password string) (string, identity.User, error) {
	user, ok := s.authenticate(username, password)
	if !ok {
		return "", identity.User{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	if err := s.users.Ensure(ctx, user); err != nil {
		return "", identity.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist user")
	}

	now := time.Now()
	sess := session.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return "", identity.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}

	roles := make([]string, len(user.Roles))
	for i, role := range user.Roles {
		roles[i] = string(role)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    user.ID,
		Name:      user.Name,
		Roles:     roles,
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", identity.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, user, nil
}

func (s *Service) authenticate(username, password string) (identity.User, bool) {
	if s.cfg.DevMode {
		if username == "admin" && password == "admin" {
			return AdminUser, true
		}
		if username == "user" && password == "user" {
			return DemoUser, true
		}
	}
	if s.cfg.AdminPassword != "" && username == "admin" && password == s.cfg.AdminPassword {
		return AdminUser, true
	}
	return identity.User{}, false
}

// Validate parses and verifies a token, checks the backing session still
// exists, and returns the user plus session ID.
func (s *Service) Validate(ctx context.Context, tokenString string) (*identity.User, string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, "", dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	// Logout deletes the session; a token presented afterwards is revoked
	// even though its signature is still valid.
	if _, err := s.sessions.Get(ctx, claims.SessionID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", dErrors.New(dErrors.CodeUnauthorized, "session revoked or expired")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check session")
	}

	roles := make([]identity.Role, len(claims.Roles))
	for i, role := range claims.Roles {
		roles[i] = identity.Role(role)
	}
	return &identity.User{ID: claims.UserID, Name: claims.Name, Roles: roles}, claims.SessionID, nil
}

// Logout revokes the session behind a token.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "session ID required")
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete session")
	}
	return nil
}

// SeedUsers upserts the demo accounts so their identities resolve in event
// listings before first login.
func (s *Service) SeedUsers(ctx context.Context) error {
	for _, user := range []identity.User{AdminUser, DemoUser} {
		if err := s.users.Ensure(ctx, user); err != nil {
			return err
		}
	}
	return nil
}
