// Package postgres owns the database connection and schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

const (
	connectAttempts = 30
	connectBackoff  = 2 * time.Second
)

// Connect establishes a connection to PostgreSQL with retries, so the server
// survives the database coming up after it.
func Connect(databaseURL string, logger *slog.Logger) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for i := 0; i < connectAttempts; i++ {
		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			logger.Warn("failed to open database, retrying", "error", err)
			time.Sleep(connectBackoff)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			logger.Info("connected to postgres")
			return db, nil
		}

		logger.Warn("failed to ping database, retrying", "error", err)
		time.Sleep(connectBackoff)
	}

	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", connectAttempts, err)
}

// RunMigrations applies the schema. Statements are idempotent; the events
// table cascades on issue deletion and carries the (issue_id, created_at, id)
// index backing cursor pagination.
func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			roles TEXT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			created_by_user_id TEXT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_created_at ON issues (created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_status ON issues (status)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_search ON issues
			USING GIN (to_tsvector('simple', title || ' ' || COALESCE(description, '')))`,
		`CREATE TABLE IF NOT EXISTS issue_events (
			id BIGSERIAL PRIMARY KEY,
			issue_id BIGINT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			title VARCHAR(200),
			description TEXT,
			status TEXT,
			comment TEXT,
			created_by_user_id TEXT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_issue_events_cursor ON issue_events (issue_id, created_at, id)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
