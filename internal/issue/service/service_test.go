package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tracker/internal/identity"
	"tracker/internal/identity/store/user"
	"tracker/internal/issue/models"
	"tracker/internal/issue/projection"
	"tracker/internal/issue/store/events"
	"tracker/internal/issue/store/issues"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/listquery"
	"tracker/pkg/platform/tx"
	"tracker/pkg/requestcontext"
)

var (
	userA = &identity.User{ID: "user-a", Name: "Alice"}
	userB = &identity.User{ID: "user-b", Name: "Bob"}
	admin = &identity.User{ID: "admin-id", Name: "Admin", Roles: []identity.Role{identity.RoleAdmin}}
)

type capturedStream struct {
	published []models.IssueEvent
}

func (c *capturedStream) Publish(event models.IssueEvent) {
	c.published = append(c.published, event)
}

type IssueServiceSuite struct {
	suite.Suite
	issues  *issues.InMemoryStore
	events  *events.InMemoryStore
	users   *user.InMemoryStore
	stream  *capturedStream
	service *Service
	clock   time.Time
}

func TestIssueServiceSuite(t *testing.T) {
	suite.Run(t, new(IssueServiceSuite))
}

func (s *IssueServiceSuite) SetupTest() {
	s.events = events.NewInMemoryStore(nil)
	s.issues = issues.NewInMemoryStore(s.events)
	s.users = user.NewInMemoryStore()
	s.stream = &capturedStream{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.issues, s.events, s.users, tx.Passthrough(), s.stream, nil, logger)
	s.clock = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	for _, u := range []*identity.User{userA, userB, admin} {
		s.Require().NoError(s.users.Ensure(context.Background(), *u))
	}
}

// ctx returns a context with a strictly advancing request time, so each
// operation in a test gets its own timestamp like separate requests would.
func (s *IssueServiceSuite) ctx() context.Context {
	s.clock = s.clock.Add(time.Second)
	return requestcontext.WithTime(context.Background(), s.clock)
}

func strPtr(v string) *string { return &v }

func statusPtr(v models.Status) *models.Status { return &v }

func (s *IssueServiceSuite) createIssue(title string, actor *identity.User) models.Issue {
	issue, err := s.service.Create(s.ctx(), CreateInput{Title: title}, actor)
	s.Require().NoError(err)
	return issue
}

func (s *IssueServiceSuite) TestCreate() {
	s.Run("creates issue with its initial event atomically", func() {
		issue, err := s.service.Create(s.ctx(), CreateInput{
			Title:       "Login broken",
			Description: strPtr("500 on login"),
		}, userA)
		s.Require().NoError(err)

		s.Equal("Login broken", issue.Title)
		s.Equal(models.StatusNew, issue.Status)
		s.Equal(userA.ID, issue.CreatedByUserID)
		s.Equal(issue.CreatedAt, issue.UpdatedAt)

		page, err := s.service.ListEvents(s.ctx(), issue.ID, nil)
		s.Require().NoError(err)
		s.Require().Len(page.Events, 1)
		initial := page.Events[0]
		s.Equal(models.EventInitial, initial.Type)
		s.Equal(strPtr("Login broken"), initial.Title)
		s.Equal(strPtr("500 on login"), initial.Description)
		s.Equal(statusPtr(models.StatusNew), initial.Status)
		s.Equal(userA.ID, initial.CreatedByUserID)
	})

	s.Run("rejects anonymous callers", func() {
		_, err := s.service.Create(s.ctx(), CreateInput{Title: "x"}, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects empty title", func() {
		_, err := s.service.Create(s.ctx(), CreateInput{Title: "   "}, userA)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects overlong title", func() {
		long := make([]rune, 201)
		for i := range long {
			long[i] = 'a'
		}
		_, err := s.service.Create(s.ctx(), CreateInput{Title: string(long)}, userA)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown status", func() {
		bogus := models.Status("WONTFIX")
		_, err := s.service.Create(s.ctx(), CreateInput{Title: "x", Status: &bogus}, userA)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// TestLifecycleScenario is the create → status change → comment-only flow.
func (s *IssueServiceSuite) TestLifecycleScenario() {
	issue, err := s.service.Create(s.ctx(), CreateInput{Title: "Login broken"}, userA)
	s.Require().NoError(err)
	createdUpdatedAt := issue.UpdatedAt

	afterStatus, _, err := s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
		Status: statusPtr(models.StatusInProgress),
	}, userB)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, afterStatus.Status)
	s.True(afterStatus.UpdatedAt.After(createdUpdatedAt), "updatedAt must advance")

	afterComment, commentEvent, err := s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
		Comment: strPtr("fixed"),
	}, userB)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, afterComment.Status)
	s.True(afterComment.UpdatedAt.After(afterStatus.UpdatedAt), "updatedAt must advance again")
	s.Nil(commentEvent.Status, "comment-only event must carry no status delta")
	s.Equal(strPtr("fixed"), commentEvent.Comment)

	page, err := s.service.ListEvents(s.ctx(), issue.ID, nil)
	s.Require().NoError(err)
	s.Require().Len(page.Events, 3)
	s.Equal(models.EventInitial, page.Events[0].Type)
	s.Equal(models.EventUpdate, page.Events[1].Type)
	s.Equal(models.EventUpdate, page.Events[2].Type)
	s.Require().NotNil(page.Events[1].CreatedBy)
	s.Equal("Bob", page.Events[1].CreatedBy.Name)
}

func (s *IssueServiceSuite) TestNoOpSuppression() {
	issue := s.createIssue("Resubmission test", userA)

	_, _, err := s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
		Status: statusPtr(models.StatusInProgress),
	}, userA)
	s.Require().NoError(err)

	countBefore, err := s.events.CountByIssue(context.Background(), issue.ID)
	s.Require().NoError(err)

	// Same status again with no comment: rejected, nothing appended.
	_, _, err = s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
		Status: statusPtr(models.StatusInProgress),
	}, userA)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "submission can't be empty")

	countAfter, err := s.events.CountByIssue(context.Background(), issue.ID)
	s.Require().NoError(err)
	s.Equal(countBefore, countAfter)
}

func (s *IssueServiceSuite) TestAddEvent() {
	s.Run("identical status with comment records comment only", func() {
		issue := s.createIssue("Status with comment", userA)
		_, event, err := s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
			Status:  statusPtr(models.StatusNew),
			Comment: strPtr("still new"),
		}, userA)
		s.Require().NoError(err)
		s.Nil(event.Status, "unchanged status must be dropped from the delta")
		s.Equal(strPtr("still new"), event.Comment)
	})

	s.Run("blank comment counts as absent", func() {
		issue := s.createIssue("Blank comment", userA)
		_, _, err := s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
			Comment: strPtr("   "),
		}, userA)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown issue yields not found", func() {
		_, _, err := s.service.AddEvent(s.ctx(), 9999, AddEventInput{
			Comment: strPtr("hello"),
		}, userA)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("anonymous caller rejected", func() {
		issue := s.createIssue("Anon", userA)
		_, _, err := s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
			Comment: strPtr("hi"),
		}, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("publishes committed events to the stream", func() {
		issue := s.createIssue("Streamed", userA)
		published := len(s.stream.published)
		_, _, err := s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
			Comment: strPtr("note"),
		}, userA)
		s.Require().NoError(err)
		s.Len(s.stream.published, published+1)
	})
}

// TestProjectionConsistency folds the persisted history and compares it with
// the stored projection.
func (s *IssueServiceSuite) TestProjectionConsistency() {
	issue, err := s.service.Create(s.ctx(), CreateInput{
		Title:       "Fold me",
		Description: strPtr("original"),
	}, userA)
	s.Require().NoError(err)

	steps := []AddEventInput{
		{Status: statusPtr(models.StatusInProgress)},
		{Title: strPtr("Fold me please")},
		{Description: strPtr("rewritten"), Comment: strPtr("tidied up")},
		{Status: statusPtr(models.StatusResolved)},
		{Comment: strPtr("done")},
	}
	for _, step := range steps {
		_, _, err := s.service.AddEvent(s.ctx(), issue.ID, step, userB)
		s.Require().NoError(err)
	}

	var history []models.IssueEvent
	var cursor *int64
	for {
		page, err := s.service.ListEvents(s.ctx(), issue.ID, cursor)
		s.Require().NoError(err)
		history = append(history, page.Events...)
		if page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor
	}

	folded := projection.Fold(history)
	stored, err := s.service.Get(s.ctx(), issue.ID)
	s.Require().NoError(err)

	s.Equal(stored.ID, folded.ID)
	s.Equal(stored.Title, folded.Title)
	s.Equal(stored.Description, folded.Description)
	s.Equal(stored.Status, folded.Status)
	s.Equal(stored.CreatedByUserID, folded.CreatedByUserID)
	s.True(stored.CreatedAt.Equal(folded.CreatedAt))
	s.True(stored.UpdatedAt.Equal(folded.UpdatedAt))
}

func (s *IssueServiceSuite) TestCursorExhaustion() {
	issue := s.createIssue("Many comments", userA)
	const extraEvents = 45
	for i := 0; i < extraEvents; i++ {
		_, _, err := s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
			Comment: strPtr(fmt.Sprintf("comment %d", i+1)),
		}, userA)
		s.Require().NoError(err)
	}

	var pages int
	var collected []int64
	var cursor *int64
	for {
		page, err := s.service.ListEvents(s.ctx(), issue.ID, cursor)
		s.Require().NoError(err)
		pages++
		for _, event := range page.Events {
			collected = append(collected, event.ID)
		}
		if page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor
	}

	s.Equal(3, pages, "46 events at page size 20 should take 3 pages")
	s.Len(collected, extraEvents+1)

	seen := make(map[int64]bool)
	var last int64
	for _, id := range collected {
		s.False(seen[id], "event %d returned twice", id)
		seen[id] = true
		s.Greater(id, last, "history must stay order-preserved")
		last = id
	}
}

func (s *IssueServiceSuite) TestDelete() {
	s.Run("requires a session", func() {
		issue := s.createIssue("Delete anon", userA)
		err := s.service.Delete(s.ctx(), issue.ID, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("requires the admin role", func() {
		issue := s.createIssue("Delete forbidden", userA)
		err := s.service.Delete(s.ctx(), issue.ID, userB)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("cascades event deletion", func() {
		issue := s.createIssue("Delete me", userA)
		for i := 0; i < 4; i++ {
			_, _, err := s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
				Comment: strPtr(fmt.Sprintf("c%d", i)),
			}, userA)
			s.Require().NoError(err)
		}
		count, err := s.events.CountByIssue(context.Background(), issue.ID)
		s.Require().NoError(err)
		s.Equal(5, count)

		s.Require().NoError(s.service.Delete(s.ctx(), issue.ID, admin))

		_, err = s.service.Get(s.ctx(), issue.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		_, err = s.service.ListEvents(s.ctx(), issue.ID, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		count, err = s.events.CountByIssue(context.Background(), issue.ID)
		s.Require().NoError(err)
		s.Equal(0, count, "all events must be gone after the cascade")
	})

	s.Run("deleting twice yields not found", func() {
		issue := s.createIssue("Delete twice", userA)
		s.Require().NoError(s.service.Delete(s.ctx(), issue.ID, admin))
		err := s.service.Delete(s.ctx(), issue.ID, admin)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *IssueServiceSuite) TestListPaginationDeterminism() {
	const total = 12
	for i := 0; i < total; i++ {
		issue, err := s.service.Create(s.ctx(), CreateInput{
			Title:  fmt.Sprintf("Issue %02d", i),
			Status: statusPtr(models.StatusNew),
		}, userA)
		s.Require().NoError(err)
		// Give half of them the same updatedAt-relevant status to force
		// duplicate primary sort values.
		if i%2 == 0 {
			_, _, err = s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{
				Status: statusPtr(models.StatusInProgress),
			}, userA)
			s.Require().NoError(err)
		}
	}

	order := &listquery.Order[models.IssueOrderField]{
		Field:     models.OrderStatus,
		Direction: listquery.Asc,
	}

	const take = 5
	var paged []int64
	for skip := 0; skip < total; skip += take {
		out, err := s.service.List(s.ctx(), listquery.Input[models.IssueOrderField, models.IssueFilter]{
			Take:  take,
			Skip:  skip,
			Order: order,
		})
		s.Require().NoError(err)
		s.Equal(total, out.Count)
		for _, record := range out.Records {
			paged = append(paged, record.ID)
		}
	}

	all, err := s.service.List(s.ctx(), listquery.Input[models.IssueOrderField, models.IssueFilter]{
		Take:  total,
		Skip:  0,
		Order: order,
	})
	s.Require().NoError(err)

	var whole []int64
	for _, record := range all.Records {
		whole = append(whole, record.ID)
	}
	s.Equal(whole, paged, "concatenated pages must equal the single fetch")
}

func (s *IssueServiceSuite) TestListFilters() {
	created := []struct {
		title  string
		status models.Status
	}{
		{"Login broken on mobile", models.StatusNew},
		{"Search is slow", models.StatusInProgress},
		{"Old login bug", models.StatusResolved},
		{"Crash on save", models.StatusClosed},
	}
	for _, c := range created {
		issue, err := s.service.Create(s.ctx(), CreateInput{Title: c.title}, userA)
		s.Require().NoError(err)
		if c.status != models.StatusNew {
			_, _, err = s.service.AddEvent(s.ctx(), issue.ID, AddEventInput{Status: statusPtr(c.status)}, userA)
			s.Require().NoError(err)
		}
	}

	s.Run("open group", func() {
		out, err := s.service.List(s.ctx(), listquery.Input[models.IssueOrderField, models.IssueFilter]{
			Filter: models.IssueFilter{Group: models.GroupOpen},
		})
		s.Require().NoError(err)
		s.Equal(2, out.Count)
	})

	s.Run("closed group includes resolved", func() {
		out, err := s.service.List(s.ctx(), listquery.Input[models.IssueOrderField, models.IssueFilter]{
			Filter: models.IssueFilter{Group: models.GroupClosed},
		})
		s.Require().NoError(err)
		s.Equal(2, out.Count)
	})

	s.Run("search is sanitized and conjunctive", func() {
		out, err := s.service.List(s.ctx(), listquery.Input[models.IssueOrderField, models.IssueFilter]{
			Filter: models.IssueFilter{Search: "  login!! bug?? "},
		})
		s.Require().NoError(err)
		s.Equal(1, out.Count)
		s.Equal("Old login bug", out.Records[0].Title)
	})

	s.Run("take above cap is rejected", func() {
		_, err := s.service.List(s.ctx(), listquery.Input[models.IssueOrderField, models.IssueFilter]{
			Take: listquery.MaxTake + 1,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *IssueServiceSuite) TestIdempotentDiff() {
	issue := s.createIssue("Diff idempotency", userA)
	stored, err := s.service.Get(s.ctx(), issue.ID)
	s.Require().NoError(err)

	delta := projection.Diff(stored, models.Delta{
		Title:       &stored.Title,
		Description: &stored.Description,
		Status:      &stored.Status,
	})
	s.True(delta.Empty())
}
