package service

import (
	"context"
	"errors"
	"time"

	"tracker/internal/issue/models"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/listquery"
	"tracker/pkg/platform/sentinel"
)

// Get loads one issue projection.
func (s *Service) Get(ctx context.Context, issueID int64) (models.Issue, error) {
	issue, err := s.issues.Get(ctx, issueID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Issue{}, dErrors.New(dErrors.CodeNotFound, "issue not found")
		}
		return models.Issue{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issue")
	}
	return issue, nil
}

// List serves the paginated issue listing. The raw search text is sanitized
// into a token-conjunction query before it reaches the store; an empty
// search after sanitization means no text filter. An empty result set is a
// valid empty state, not an error.
func (s *Service) List(ctx context.Context, input listquery.Input[models.IssueOrderField, models.IssueFilter]) (listquery.Output[models.IssueListItem], error) {
	ctx, span := tracer.Start(ctx, "issue.List")
	defer span.End()

	if err := input.Normalize(models.ValidOrderField); err != nil {
		return listquery.Output[models.IssueListItem]{}, err
	}
	if input.Order == nil {
		input.Order = &listquery.Order[models.IssueOrderField]{
			Field:     models.OrderCreatedAt,
			Direction: listquery.Desc,
		}
	}
	input.Filter.Search = listquery.SanitizeSearch(input.Filter.Search)

	start := time.Now()
	output, err := s.issues.List(ctx, input)
	s.metrics.ObserveListQuery(time.Since(start))
	if err != nil {
		return listquery.Output[models.IssueListItem]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issues")
	}
	return output, nil
}
