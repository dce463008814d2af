package service

import (
	"context"
	"errors"

	"tracker/internal/identity"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/platform/sentinel"
	"tracker/pkg/requestcontext"
)

// Delete removes an issue and, by cascade, its whole event history.
// Admin-only and irreversible; there is no tombstone or undo.
func (s *Service) Delete(ctx context.Context, issueID int64, actor *identity.User) error {
	ctx, span := tracer.Start(ctx, "issue.Delete")
	defer span.End()

	if actor == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "login required")
	}
	if !actor.HasRole(identity.RoleAdmin) {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}

	if err := s.issues.Delete(ctx, issueID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "issue not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete issue")
	}

	s.metrics.IncIssuesDeleted()
	s.logger.InfoContext(ctx, "issue deleted",
		"issue_id", issueID,
		"actor_id", actor.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}
