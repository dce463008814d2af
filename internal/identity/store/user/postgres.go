// Package user persists the externally-owned user identities the tracker
// references. Only id, name and roles are stored; everything else about a
// user belongs to the auth provider.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tracker/internal/identity"
	"tracker/pkg/platform/sentinel"
)

// PostgresStore implements the user store over postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a user store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get loads one user by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (identity.User, error) {
	var (
		user  identity.User
		roles pq.StringArray
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, roles FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Name, &roles)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("query user: %w", err)
	}

	user.Roles = make([]identity.Role, len(roles))
	for i, role := range roles {
		user.Roles[i] = identity.Role(role)
	}
	return user, nil
}

// GetMany loads shallow identities for a set of user IDs. Missing IDs are
// simply absent from the result.
func (s *PostgresStore) GetMany(ctx context.Context, ids []string) (map[string]identity.Ref, error) {
	refs := make(map[string]identity.Ref, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM users WHERE id = ANY($1)`, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref identity.Ref
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan user ref: %w", err)
		}
		refs[ref.ID] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return refs, nil
}

// Ensure upserts a user row; used to seed the demo accounts at startup and
// to refresh names on login.
func (s *PostgresStore) Ensure(ctx context.Context, user identity.User) error {
	roles := make([]string, len(user.Roles))
	for i, role := range user.Roles {
		roles[i] = string(role)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, roles)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, roles = EXCLUDED.roles
	`, user.ID, user.Name, pq.Array(roles))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
