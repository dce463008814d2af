// Package identity models authenticated users and exposes the context
// accessors services use to identify the acting user. Authentication itself
// (credentials, sessions, tokens) lives in the subpackages; services only
// ever see a User pulled from context.
package identity

import (
	"context"

	dErrors "tracker/pkg/domain-errors"
)

// Role grants a user a set of capabilities.
type Role string

// RoleAdmin allows destructive operations such as deleting issues.
const RoleAdmin Role = "ADMIN"

// User is the identity of an authenticated account. Owned by the auth
// provider; domain entities reference it by ID only.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Roles []Role `json:"roles"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Ref is the shallow identity embedded in read models (e.g. event listings).
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ref returns the user's shallow identity.
func (u *User) Ref() Ref {
	if u == nil {
		return Ref{}
	}
	return Ref{ID: u.ID, Name: u.Name}
}

type (
	userKey    struct{}
	sessionKey struct{}
)

var (
	contextKeyUser    = userKey{}
	contextKeySession = sessionKey{}
)

// WithUser injects the authenticated user into the context.
func WithUser(ctx context.Context, user *User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKeyUser, user)
}

// UserOrNil returns the authenticated user, or nil for anonymous callers.
// Optional-auth paths (e.g. rendering "login to comment") use this.
func UserOrNil(ctx context.Context) *User {
	user, _ := ctx.Value(contextKeyUser).(*User)
	return user
}

// RequireUser returns the authenticated user or an unauthorized error when
// no session exists.
func RequireUser(ctx context.Context) (*User, error) {
	user := UserOrNil(ctx)
	if user == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "login required")
	}
	return user, nil
}

// WithSessionID injects the session ID backing the current request.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKeySession, sessionID)
}

// SessionID returns the session ID of the current request, if any.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(contextKeySession).(string)
	return sid
}
