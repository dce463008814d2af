package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"tracker/internal/identity"
	"tracker/internal/issue/models"
	"tracker/internal/issue/projection"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/platform/sentinel"
	"tracker/pkg/requestcontext"
)

// AddEventInput carries a submitted change: any subset of the issue fields
// plus an optional free-text comment.
type AddEventInput struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *models.Status `json:"status,omitempty"`
	Comment     *string        `json:"comment,omitempty"`
}

// AddEvent appends one UPDATE event to an issue's history and applies its
// delta to the projection, in one transaction.
//
// The submitted fields are diffed against the current state first: a
// resubmitted identical value (e.g. the current status) is silently dropped,
// not an error. If nothing remains and there is no comment, the submission
// is rejected; a no-op event is never recorded.
//
// Concurrent calls against the same issue race at the database layer:
// last committed write wins on the projection's fields while the log keeps
// both events in commit order. That is the documented semantics; no
// optimistic-concurrency token is enforced.
func (s *Service) AddEvent(ctx context.Context, issueID int64, input AddEventInput, actor *identity.User) (models.Issue, models.IssueEvent, error) {
	ctx, span := tracer.Start(ctx, "issue.AddEvent")
	defer span.End()

	if actor == nil {
		return models.Issue{}, models.IssueEvent{}, dErrors.New(dErrors.CodeUnauthorized, "login required")
	}
	if err := validateAddEventInput(input); err != nil {
		return models.Issue{}, models.IssueEvent{}, err
	}

	current, err := s.issues.Get(ctx, issueID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Issue{}, models.IssueEvent{}, dErrors.New(dErrors.CodeNotFound, "issue not found")
		}
		return models.Issue{}, models.IssueEvent{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issue")
	}

	comment := trimComment(input.Comment)
	effective := projection.Diff(current, models.Delta{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
	})
	if effective.Empty() && comment == nil {
		return models.Issue{}, models.IssueEvent{}, dErrors.New(dErrors.CodeValidation, "submission can't be empty")
	}

	now := requestcontext.Now(ctx)
	var (
		updated models.Issue
		event   models.IssueEvent
	)
	err = s.runner.Execute(ctx, func(txCtx context.Context) error {
		updated, err = s.issues.ApplyDelta(txCtx, issueID, effective, now)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "issue not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update issue")
		}
		event = models.IssueEvent{
			IssueID:         issueID,
			Type:            models.EventUpdate,
			Title:           effective.Title,
			Description:     effective.Description,
			Status:          effective.Status,
			Comment:         comment,
			CreatedByUserID: actor.ID,
			CreatedAt:       now,
		}
		if err := s.events.Append(txCtx, &event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
		}
		return nil
	})
	if err != nil {
		return models.Issue{}, models.IssueEvent{}, err
	}

	s.metrics.IncEventsAppended()
	s.publish(event)
	s.logger.InfoContext(ctx, "issue event appended",
		"issue_id", issueID,
		"event_id", event.ID,
		"actor_id", actor.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, event, nil
}

func validateAddEventInput(input AddEventInput) error {
	if input.Title != nil {
		if err := validateTitle(*input.Title); err != nil {
			return err
		}
	}
	if input.Description != nil {
		if err := validateDescription(*input.Description); err != nil {
			return err
		}
	}
	if input.Status != nil && !input.Status.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid status %q", *input.Status)
	}
	if input.Comment != nil && utf8.RuneCountInString(*input.Comment) > maxCommentLen {
		return dErrors.Newf(dErrors.CodeValidation, "comment must be at most %d characters", maxCommentLen)
	}
	return nil
}

// trimComment normalizes a submitted comment: surrounding whitespace is
// stripped and a blank comment counts as absent.
func trimComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
