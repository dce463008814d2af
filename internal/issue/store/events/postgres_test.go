package events

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"tracker/internal/issue/models"
	"tracker/pkg/platform/sentinel"
)

type EventsPostgresSuite struct {
	suite.Suite
	mock  sqlmock.Sqlmock
	store *PostgresStore
}

func TestEventsPostgresSuite(t *testing.T) {
	suite.Run(t, new(EventsPostgresSuite))
}

func (s *EventsPostgresSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.T().Cleanup(func() { db.Close() })
	s.mock = mock
	s.store = NewPostgresStore(db)
}

func (s *EventsPostgresSuite) TestAppendAssignsID() {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	title := "Login broken"
	status := models.StatusNew

	s.mock.ExpectQuery("INSERT INTO issue_events").
		WithArgs(int64(7), "INITIAL", &title, nil, "NEW", nil, "user-a", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	event := models.IssueEvent{
		IssueID:         7,
		Type:            models.EventInitial,
		Title:           &title,
		Status:          &status,
		CreatedByUserID: "user-a",
		CreatedAt:       now,
	}
	s.Require().NoError(s.store.Append(context.Background(), &event))
	s.Equal(int64(42), event.ID)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *EventsPostgresSuite) TestAppendMapsForeignKeyViolation() {
	s.mock.ExpectQuery("INSERT INTO issue_events").
		WillReturnError(&pq.Error{Code: "23503"})

	comment := "orphan"
	err := s.store.Append(context.Background(), &models.IssueEvent{
		IssueID:         999,
		Type:            models.EventUpdate,
		Comment:         &comment,
		CreatedByUserID: "user-a",
	})
	s.Require().ErrorIs(err, sentinel.ErrForeignRef)
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "issue_id", "type", "title", "description", "status", "comment",
		"created_by_user_id", "created_at",
	})
}

func (s *EventsPostgresSuite) TestPageTrimsOverfetchAndSetsCursor() {
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	rows := eventRows().
		AddRow(int64(10), int64(7), "INITIAL", "t", nil, "NEW", nil, "user-a", base).
		AddRow(int64(11), int64(7), "UPDATE", nil, nil, nil, "first", "user-a", base.Add(time.Second)).
		AddRow(int64(12), int64(7), "UPDATE", nil, nil, nil, "second", "user-a", base.Add(2*time.Second))

	// limit+1 overfetch: limit 2 asks for 3.
	s.mock.ExpectQuery("SELECT id, issue_id, type").
		WithArgs(int64(7), nil, 3).
		WillReturnRows(rows)

	events, nextCursor, err := s.store.Page(context.Background(), 7, nil, 2)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Require().NotNil(nextCursor)
	s.Equal(int64(11), *nextCursor, "cursor is the last returned event, not the trimmed one")
	s.Equal(models.EventInitial, events[0].Type)
	s.Nil(events[1].Status)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *EventsPostgresSuite) TestPageExhausted() {
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cursor := int64(11)

	s.mock.ExpectQuery("SELECT id, issue_id, type").
		WithArgs(int64(7), &cursor, 21).
		WillReturnRows(eventRows().
			AddRow(int64(12), int64(7), "UPDATE", nil, nil, nil, "last", "user-a", base))

	events, nextCursor, err := s.store.Page(context.Background(), 7, &cursor, 20)
	s.Require().NoError(err)
	s.Len(events, 1)
	s.Nil(nextCursor)
}
