package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"tracker/internal/identity"
	"tracker/internal/issue/models"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/requestcontext"
)

// CreateInput carries the fields of a new issue.
type CreateInput struct {
	Title       string         `json:"title"`
	Description *string        `json:"description,omitempty"`
	Status      *models.Status `json:"status,omitempty"`
}

// Create validates the input and creates the Issue row together with its
// INITIAL event in one transaction, both carrying identical field values
// attributed to the actor. An issue is never created without its first
// event.
func (s *Service) Create(ctx context.Context, input CreateInput, actor *identity.User) (models.Issue, error) {
	ctx, span := tracer.Start(ctx, "issue.Create")
	defer span.End()

	if actor == nil {
		return models.Issue{}, dErrors.New(dErrors.CodeUnauthorized, "login required")
	}
	if err := validateTitle(input.Title); err != nil {
		return models.Issue{}, err
	}
	if input.Description != nil {
		if err := validateDescription(*input.Description); err != nil {
			return models.Issue{}, err
		}
	}

	status := models.StatusNew
	if input.Status != nil {
		if !input.Status.Valid() {
			return models.Issue{}, dErrors.Newf(dErrors.CodeValidation, "invalid status %q", *input.Status)
		}
		status = *input.Status
	}

	now := requestcontext.Now(ctx)
	issue := models.Issue{
		Title:           input.Title,
		Status:          status,
		CreatedByUserID: actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if input.Description != nil {
		issue.Description = *input.Description
	}

	var event models.IssueEvent
	err := s.runner.Execute(ctx, func(txCtx context.Context) error {
		if err := s.issues.Create(txCtx, &issue); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create issue")
		}
		event = models.IssueEvent{
			IssueID:         issue.ID,
			Type:            models.EventInitial,
			Title:           &issue.Title,
			Description:     input.Description,
			Status:          &issue.Status,
			CreatedByUserID: actor.ID,
			CreatedAt:       now,
		}
		if err := s.events.Append(txCtx, &event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append initial event")
		}
		return nil
	})
	if err != nil {
		return models.Issue{}, err
	}

	s.metrics.IncIssuesCreated()
	s.metrics.IncEventsAppended()
	s.publish(event)
	s.logger.InfoContext(ctx, "issue created",
		"issue_id", issue.ID,
		"actor_id", actor.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return issue, nil
}

func validateTitle(title string) error {
	length := utf8.RuneCountInString(title)
	if length < 1 || strings.TrimSpace(title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title must not be empty")
	}
	if length > maxTitleLen {
		return dErrors.Newf(dErrors.CodeValidation, "title must be at most %d characters", maxTitleLen)
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return dErrors.Newf(dErrors.CodeValidation, "description must be at most %d characters", maxDescriptionLen)
	}
	return nil
}
