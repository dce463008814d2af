// Package projection translates event deltas into mutations of the Issue
// row, and answers whether a submitted change actually changes anything.
//
// Diff and Apply enumerate the closed set of optional fields explicitly, so
// each field's change semantics (absent means unchanged) is spelled out
// rather than inferred from merge behavior.
package projection

import (
	"time"

	"tracker/internal/issue/models"
)

// Diff returns only the fields whose submitted value differs from the
// issue's current value. Absent submitted fields are ignored. A resubmitted
// identical value is dropped, so a no-op never reaches the event log.
func Diff(before models.Issue, submitted models.Delta) models.Delta {
	var delta models.Delta
	if submitted.Title != nil && *submitted.Title != before.Title {
		delta.Title = submitted.Title
	}
	if submitted.Description != nil && *submitted.Description != before.Description {
		delta.Description = submitted.Description
	}
	if submitted.Status != nil && *submitted.Status != before.Status {
		delta.Status = submitted.Status
	}
	return delta
}

// Apply merges delta fields into the issue and advances updatedAt to the
// operation's timestamp. It must run in the same transaction as the
// corresponding event append; a projection update without its event (or the
// reverse) is a correctness violation because the log is the source of truth.
func Apply(issue *models.Issue, delta models.Delta, now time.Time) {
	if delta.Title != nil {
		issue.Title = *delta.Title
	}
	if delta.Description != nil {
		issue.Description = *delta.Description
	}
	if delta.Status != nil {
		issue.Status = *delta.Status
	}
	issue.UpdatedAt = now
}

// FromEvent extracts the delta carried by a persisted event, used when
// folding a history back into a projection.
func FromEvent(event models.IssueEvent) models.Delta {
	return models.Delta{
		Title:       event.Title,
		Description: event.Description,
		Status:      event.Status,
	}
}

// Fold replays a full event history in order over a zero issue and returns
// the resulting projection. The first event must be the INITIAL event.
func Fold(events []models.IssueEvent) models.Issue {
	var issue models.Issue
	for i, event := range events {
		if i == 0 {
			issue.ID = event.IssueID
			issue.CreatedByUserID = event.CreatedByUserID
			issue.CreatedAt = event.CreatedAt
			issue.Status = models.StatusNew
		}
		Apply(&issue, FromEvent(event), event.CreatedAt)
	}
	return issue
}
