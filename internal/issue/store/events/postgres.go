// Package events persists the append-only IssueEvent log. Rows are written
// once and never mutated; the only deletion path is the cascade from their
// owning issue.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tracker/internal/issue/models"
	"tracker/pkg/platform/sentinel"
	txcontext "tracker/pkg/platform/tx"
)

// foreignKeyViolation is the postgres error code for a broken reference.
const foreignKeyViolation = "23503"

// PostgresStore implements the event log over a postgres table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an event log store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts one immutable event and assigns its ID. Joining an ambient
// transaction (via pkg/platform/tx) keeps the append atomic with the
// projection update. A broken issue reference maps to sentinel.ErrForeignRef.
func (s *PostgresStore) Append(ctx context.Context, event *models.IssueEvent) error {
	query := `
		INSERT INTO issue_events (
			issue_id, type, title, description, status, comment,
			created_by_user_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := s.execer(ctx).QueryRowContext(ctx, query,
		event.IssueID,
		string(event.Type),
		event.Title,
		event.Description,
		(*string)(event.Status),
		event.Comment,
		event.CreatedByUserID,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return fmt.Errorf("append issue event: %w", sentinel.ErrForeignRef)
		}
		return fmt.Errorf("append issue event: %w", err)
	}
	return nil
}

// Page returns up to limit events of one issue ordered by (createdAt asc,
// id asc), starting strictly after the cursor event. One extra row is
// fetched to decide whether a next page exists, then trimmed; the last
// returned event's ID becomes the next cursor. This avoids a separate count
// query, and no aggregate of event counts is stored anywhere.
func (s *PostgresStore) Page(ctx context.Context, issueID int64, cursor *int64, limit int) ([]models.IssueEvent, *int64, error) {
	query := `
		SELECT id, issue_id, type, title, description, status, comment,
		       created_by_user_id, created_at
		FROM issue_events
		WHERE issue_id = $1
		  AND ($2::bigint IS NULL OR (created_at, id) > (
		      SELECT created_at, id FROM issue_events WHERE id = $2
		  ))
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`

	rows, err := s.execer(ctx).QueryContext(ctx, query, issueID, cursor, limit+1)
	if err != nil {
		return nil, nil, fmt.Errorf("query issue events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *int64
	if len(events) > limit {
		events = events[:limit]
		last := events[len(events)-1].ID
		nextCursor = &last
	}
	return events, nextCursor, nil
}

// CountByIssue returns the number of events in an issue's history.
func (s *PostgresStore) CountByIssue(ctx context.Context, issueID int64) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issue_events WHERE issue_id = $1`, issueID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count issue events: %w", err)
	}
	return count, nil
}

func scanEvents(rows *sql.Rows) ([]models.IssueEvent, error) {
	var events []models.IssueEvent

	for rows.Next() {
		var (
			event      models.IssueEvent
			eventType  string
			nullStatus sql.NullString
		)
		err := rows.Scan(
			&event.ID,
			&event.IssueID,
			&eventType,
			&event.Title,
			&event.Description,
			&nullStatus,
			&event.Comment,
			&event.CreatedByUserID,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan issue event: %w", err)
		}

		event.Type = models.EventType(eventType)
		if nullStatus.Valid {
			status := models.Status(nullStatus.String)
			event.Status = &status
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issue events: %w", err)
	}
	return events, nil
}
