package tx

import (
	"context"
	"database/sql"
)

// Runner executes a function atomically. Services depend on this instead of
// *sql.DB directly so unit tests with in-memory stores can run without a
// database.
type Runner interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

type dbRunner struct {
	db *sql.DB
}

// NewRunner returns a Runner that wraps fn in a real SQL transaction.
func NewRunner(db *sql.DB) Runner {
	return dbRunner{db: db}
}

func (r dbRunner) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return Execute(ctx, r.db, fn)
}

type passthroughRunner struct{}

// Passthrough returns a Runner that calls fn directly, for stores that have
// no transaction concept.
func Passthrough() Runner {
	return passthroughRunner{}
}

func (passthroughRunner) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
