// Package service is the only entry point that mutates issue state. It
// enforces authorization and keeps every projection update transactionally
// paired with its event append.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"tracker/internal/identity"
	"tracker/internal/issue/models"
	"tracker/internal/platform/metrics"
	"tracker/pkg/listquery"
	"tracker/pkg/platform/tx"
)

var tracer = otel.Tracer("tracker/internal/issue/service")

// listEventsPageSize is the fixed page size of event history listings.
const listEventsPageSize = 20

const (
	maxTitleLen       = 200
	maxDescriptionLen = 10_000
	maxCommentLen     = 10_000
)

// IssueStore persists the Issue projection.
type IssueStore interface {
	Create(ctx context.Context, issue *models.Issue) error
	Get(ctx context.Context, id int64) (models.Issue, error)
	ApplyDelta(ctx context.Context, id int64, delta models.Delta, updatedAt time.Time) (models.Issue, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, input listquery.Input[models.IssueOrderField, models.IssueFilter]) (listquery.Output[models.IssueListItem], error)
}

// EventStore persists the append-only event log.
type EventStore interface {
	Append(ctx context.Context, event *models.IssueEvent) error
	Page(ctx context.Context, issueID int64, cursor *int64, limit int) ([]models.IssueEvent, *int64, error)
}

// UserStore resolves shallow user identities for event enrichment.
type UserStore interface {
	GetMany(ctx context.Context, ids []string) (map[string]identity.Ref, error)
}

// EventStream receives committed events for downstream consumers. Publishing
// is best effort and happens after the transaction commits.
type EventStream interface {
	Publish(event models.IssueEvent)
}

// Service orchestrates issue mutations and queries.
type Service struct {
	issues  IssueStore
	events  EventStore
	users   UserStore
	runner  tx.Runner
	stream  EventStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates the issue service. stream and metrics may be nil.
func New(
	issues IssueStore,
	events EventStore,
	users UserStore,
	runner tx.Runner,
	stream EventStream,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		issues:  issues,
		events:  events,
		users:   users,
		runner:  runner,
		stream:  stream,
		metrics: m,
		logger:  logger,
	}
}

func (s *Service) publish(event models.IssueEvent) {
	if s.stream != nil {
		s.stream.Publish(event)
	}
}
