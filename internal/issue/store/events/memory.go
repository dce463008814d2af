package events

import (
	"context"
	"sort"
	"sync"

	"tracker/internal/issue/models"
	"tracker/pkg/platform/sentinel"
)

// IssueChecker answers whether an issue exists, so the in-memory store can
// enforce the same referential integrity the postgres schema does.
type IssueChecker interface {
	Exists(issueID int64) bool
}

// InMemoryStore is a process-local event log used in unit tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	events []models.IssueEvent
	issues IssueChecker
}

// NewInMemoryStore creates an empty in-memory event log. issues may be nil
// to skip referential checks.
func NewInMemoryStore(issues IssueChecker) *InMemoryStore {
	return &InMemoryStore{nextID: 1, issues: issues}
}

// Append stores one event and assigns a monotonic ID.
func (s *InMemoryStore) Append(_ context.Context, event *models.IssueEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.issues != nil && !s.issues.Exists(event.IssueID) {
		return sentinel.ErrForeignRef
	}

	event.ID = s.nextID
	s.nextID++
	s.events = append(s.events, *event)
	return nil
}

// Page mirrors the postgres store's cursor semantics: (createdAt, id) order,
// strictly after the cursor event, limit+1 overfetch trimmed to limit.
func (s *InMemoryStore) Page(_ context.Context, issueID int64, cursor *int64, limit int) ([]models.IssueEvent, *int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.IssueEvent
	for _, event := range s.events {
		if event.IssueID == issueID {
			matched = append(matched, event)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	start := 0
	if cursor != nil {
		for i, event := range matched {
			if event.ID == *cursor {
				start = i + 1
				break
			}
		}
	}
	matched = matched[start:]

	var nextCursor *int64
	if len(matched) > limit {
		matched = matched[:limit]
		last := matched[len(matched)-1].ID
		nextCursor = &last
	}
	return matched, nextCursor, nil
}

// CountByIssue returns the number of stored events for an issue.
func (s *InMemoryStore) CountByIssue(_ context.Context, issueID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, event := range s.events {
		if event.IssueID == issueID {
			count++
		}
	}
	return count, nil
}

// DeleteByIssue removes all events of an issue, standing in for the schema's
// ON DELETE CASCADE.
func (s *InMemoryStore) DeleteByIssue(issueID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	for _, event := range s.events {
		if event.IssueID != issueID {
			kept = append(kept, event)
		}
	}
	s.events = kept
}
