package service

import (
	"context"
	"errors"

	"tracker/internal/issue/models"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/platform/sentinel"
	pkgstrings "tracker/pkg/platform/strings"
)

// EventPage is one page of an issue's event history. NextCursor is nil when
// the history is exhausted.
type EventPage struct {
	Events     []models.IssueEvent `json:"events"`
	NextCursor *int64              `json:"nextCursor,omitempty"`
}

// ListEvents pages through an issue's history in (createdAt, id) order with
// a fixed page size, enriching each event with the triggering user's shallow
// identity.
func (s *Service) ListEvents(ctx context.Context, issueID int64, cursor *int64) (EventPage, error) {
	ctx, span := tracer.Start(ctx, "issue.ListEvents")
	defer span.End()

	if _, err := s.issues.Get(ctx, issueID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return EventPage{}, dErrors.New(dErrors.CodeNotFound, "issue not found")
		}
		return EventPage{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issue")
	}

	events, nextCursor, err := s.events.Page(ctx, issueID, cursor, listEventsPageSize)
	if err != nil {
		return EventPage{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}

	if err := s.enrichEvents(ctx, events); err != nil {
		return EventPage{}, err
	}
	if events == nil {
		events = []models.IssueEvent{}
	}
	return EventPage{Events: events, NextCursor: nextCursor}, nil
}

func (s *Service) enrichEvents(ctx context.Context, events []models.IssueEvent) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]string, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.CreatedByUserID)
	}

	refs, err := s.users.GetMany(ctx, pkgstrings.DedupeAndTrim(ids))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve event actors")
	}
	for i := range events {
		if ref, ok := refs[events[i].CreatedByUserID]; ok {
			events[i].CreatedBy = &ref
		}
	}
	return nil
}
