package issues

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tracker/internal/issue/models"
	"tracker/internal/issue/projection"
	"tracker/pkg/listquery"
	"tracker/pkg/platform/sentinel"
)

// Cascader receives the cascade when an issue is deleted, standing in for
// the schema's ON DELETE CASCADE in unit tests.
type Cascader interface {
	DeleteByIssue(issueID int64)
}

// InMemoryStore is a process-local projection store used in unit tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	issues  map[int64]models.Issue
	cascade Cascader
}

// NewInMemoryStore creates an empty in-memory issue store. cascade may be
// nil when event cascading is not under test.
func NewInMemoryStore(cascade Cascader) *InMemoryStore {
	return &InMemoryStore{nextID: 1, issues: make(map[int64]models.Issue), cascade: cascade}
}

// Exists reports whether an issue is stored; satisfies the event store's
// referential check.
func (s *InMemoryStore) Exists(issueID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.issues[issueID]
	return ok
}

// Create stores the issue and assigns a monotonic ID.
func (s *InMemoryStore) Create(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue.ID = s.nextID
	s.nextID++
	s.issues[issue.ID] = *issue
	return nil
}

// Get loads one issue.
func (s *InMemoryStore) Get(_ context.Context, id int64) (models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return models.Issue{}, sentinel.ErrNotFound
	}
	return issue, nil
}

// ApplyDelta merges the delta into the stored issue, mirroring the postgres
// store's semantics.
func (s *InMemoryStore) ApplyDelta(_ context.Context, id int64, delta models.Delta, updatedAt time.Time) (models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return models.Issue{}, sentinel.ErrNotFound
	}
	projection.Apply(&issue, delta, updatedAt)
	s.issues[id] = issue
	return issue, nil
}

// Delete removes the issue and cascades to its events.
func (s *InMemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.issues, id)
	if s.cascade != nil {
		s.cascade.DeleteByIssue(id)
	}
	return nil
}

// List serves the listing contract over the in-memory set with the same
// ordering and tie-break rules as the postgres store.
func (s *InMemoryStore) List(_ context.Context, input listquery.Input[models.IssueOrderField, models.IssueFilter]) (listquery.Output[models.IssueListItem], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Issue
	for _, issue := range s.issues {
		if matchesFilter(issue, input.Filter) {
			matched = append(matched, issue)
		}
	}

	field := models.OrderCreatedAt
	desc := true
	if input.Order != nil {
		field = input.Order.Field
		desc = input.Order.Direction == listquery.Desc
	}
	sort.SliceStable(matched, func(i, j int) bool {
		less, equal := compareIssues(matched[i], matched[j], field)
		if equal {
			return matched[i].ID > matched[j].ID
		}
		if desc {
			return !less
		}
		return less
	})

	count := len(matched)
	start := input.Skip
	if start > count {
		start = count
	}
	end := start + input.Take
	if end > count {
		end = count
	}

	records := make([]models.IssueListItem, 0, end-start)
	for _, issue := range matched[start:end] {
		records = append(records, models.IssueListItem{
			ID:        issue.ID,
			Title:     issue.Title,
			Status:    issue.Status,
			CreatedAt: issue.CreatedAt,
			UpdatedAt: issue.UpdatedAt,
		})
	}
	return listquery.Output[models.IssueListItem]{Records: records, Count: count}, nil
}

func matchesFilter(issue models.Issue, filter models.IssueFilter) bool {
	if statuses := filter.Group.Statuses(); len(statuses) > 0 {
		found := false
		for _, status := range statuses {
			if issue.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Search != "" {
		haystack := strings.ToLower(issue.Title + " " + issue.Description)
		for _, token := range strings.Split(filter.Search, " & ") {
			if !strings.Contains(haystack, strings.ToLower(token)) {
				return false
			}
		}
	}
	return true
}

func compareIssues(a, b models.Issue, field models.IssueOrderField) (less, equal bool) {
	switch field {
	case models.OrderTitle:
		return a.Title < b.Title, a.Title == b.Title
	case models.OrderStatus:
		return a.Status < b.Status, a.Status == b.Status
	case models.OrderUpdatedAt:
		return a.UpdatedAt.Before(b.UpdatedAt), a.UpdatedAt.Equal(b.UpdatedAt)
	default:
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	}
}
