// Package issues persists the Issue projection rows and serves the issue
// listing. Projection writes are expected to run inside the same transaction
// as their event append (via pkg/platform/tx).
package issues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"tracker/internal/issue/models"
	"tracker/pkg/listquery"
	"tracker/pkg/platform/sentinel"
	txcontext "tracker/pkg/platform/tx"
)

// PostgresStore implements the projection store over postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an issue store backed by db.
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

// Create inserts the projection row and assigns its ID.
func (s *PostgresStore) Create(ctx context.Context, issue *models.Issue) error {
	query := `
		INSERT INTO issues (title, description, status, created_by_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		issue.Title,
		issue.Description,
		string(issue.Status),
		issue.CreatedByUserID,
		issue.CreatedAt,
		issue.UpdatedAt,
	).Scan(&issue.ID)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// Get loads one issue projection.
func (s *PostgresStore) Get(ctx context.Context, id int64) (models.Issue, error) {
	query := `
		SELECT id, title, COALESCE(description, ''), status,
		       created_by_user_id, created_at, updated_at
		FROM issues
		WHERE id = $1
	`
	var (
		issue  models.Issue
		status string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&status,
		&issue.CreatedByUserID,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Issue{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Issue{}, fmt.Errorf("query issue: %w", err)
	}
	issue.Status = models.Status(status)
	return issue, nil
}

// ApplyDelta merges the delta's present fields into the row and advances
// updated_at, returning the updated projection. Fields absent from the delta
// keep their stored value. Concurrent updates race at the database layer;
// last committed write wins on the fields, which is the documented semantics.
func (s *PostgresStore) ApplyDelta(ctx context.Context, id int64, delta models.Delta, updatedAt time.Time) (models.Issue, error) {
	query := `
		UPDATE issues
		SET title       = COALESCE($2, title),
		    description = COALESCE($3, description),
		    status      = COALESCE($4, status),
		    updated_at  = $5
		WHERE id = $1
		RETURNING id, title, COALESCE(description, ''), status,
		          created_by_user_id, created_at, updated_at
	`
	var (
		issue  models.Issue
		status string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query,
		id,
		delta.Title,
		delta.Description,
		(*string)(delta.Status),
		updatedAt,
	).Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&status,
		&issue.CreatedByUserID,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Issue{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Issue{}, fmt.Errorf("update issue: %w", err)
	}
	issue.Status = models.Status(status)
	return issue, nil
}

// Delete removes the issue row; issue_events cascade via the schema's
// ON DELETE CASCADE. Irreversible.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete issue rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

var orderColumns = map[models.IssueOrderField]string{
	models.OrderCreatedAt: "created_at",
	models.OrderUpdatedAt: "updated_at",
	models.OrderTitle:     "title",
	models.OrderStatus:    "status",
}

// List serves the issue listing: one filtered, ordered page plus the total
// count matching the filter. Page and count queries run concurrently. The
// secondary sort on id DESC keeps pagination deterministic when the primary
// field has duplicate values.
func (s *PostgresStore) List(ctx context.Context, input listquery.Input[models.IssueOrderField, models.IssueFilter]) (listquery.Output[models.IssueListItem], error) {
	where, args := buildFilter(input.Filter)

	column := orderColumns[models.OrderCreatedAt]
	direction := "DESC"
	if input.Order != nil {
		column = orderColumns[input.Order.Field]
		if input.Order.Direction == listquery.Asc {
			direction = "ASC"
		}
	}

	pageQuery := fmt.Sprintf(`
		SELECT id, title, status, created_at, updated_at
		FROM issues
		%s
		ORDER BY %s %s, id DESC
		LIMIT $%d OFFSET $%d
	`, where, column, direction, len(args)+1, len(args)+2)
	pageArgs := append(append([]any{}, args...), input.Take, input.Skip)

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM issues %s`, where)

	var output listquery.Output[models.IssueListItem]
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx, pageQuery, pageArgs...)
		if err != nil {
			return fmt.Errorf("query issues page: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				item   models.IssueListItem
				status string
			)
			if err := rows.Scan(&item.ID, &item.Title, &status, &item.CreatedAt, &item.UpdatedAt); err != nil {
				return fmt.Errorf("scan issue row: %w", err)
			}
			item.Status = models.Status(status)
			output.Records = append(output.Records, item)
		}
		return rows.Err()
	})

	g.Go(func() error {
		if err := s.db.QueryRowContext(gctx, countQuery, args...).Scan(&output.Count); err != nil {
			return fmt.Errorf("count issues: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return listquery.Output[models.IssueListItem]{}, err
	}
	if output.Records == nil {
		output.Records = []models.IssueListItem{}
	}
	return output, nil
}

// buildFilter renders the WHERE clause for a listing filter. The search text
// is expected to be sanitized already (listquery.SanitizeSearch), so it can
// go straight into to_tsquery as a parameter.
func buildFilter(filter models.IssueFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if statuses := filter.Group.Statuses(); len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		args = append(args, pq.Array(values))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	if filter.Search != "" {
		args = append(args, filter.Search)
		clauses = append(clauses, fmt.Sprintf(
			"to_tsvector('simple', title || ' ' || COALESCE(description, '')) @@ to_tsquery('simple', $%d)",
			len(args),
		))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
