// Package models holds the issue domain entities: the Issue projection, the
// append-only IssueEvent log records, and the list read models.
package models

import (
	"time"

	"tracker/internal/identity"
)

// Status is the workflow state of an issue. Any status is reachable from any
// other; the OPEN/CLOSED grouping exists for display labels and the default
// list filter, not to gate transitions.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// StatusGroup is a coarse filter bucket over statuses.
type StatusGroup string

const (
	GroupAll    StatusGroup = "ALL"
	GroupOpen   StatusGroup = "OPEN"
	GroupClosed StatusGroup = "CLOSED"
)

// Statuses expands a group to its member statuses. GroupAll (and unknown
// groups) expand to nil, meaning "no status restriction".
func (g StatusGroup) Statuses() []Status {
	switch g {
	case GroupOpen:
		return []Status{StatusNew, StatusInProgress}
	case GroupClosed:
		return []Status{StatusClosed, StatusResolved}
	}
	return nil
}

// EventType distinguishes the creation event from later changes.
type EventType string

const (
	// EventInitial is written exactly once per issue, atomically with the
	// issue row itself. It is always the earliest event by (createdAt, id).
	EventInitial EventType = "INITIAL"
	// EventUpdate is any later change: a field delta, a comment, or both.
	EventUpdate EventType = "UPDATE"
)

// Issue is the current-state projection of an issue: the fold of its event
// history. The event log is the audit source of truth; this row is a derived
// cache kept in sync transactionally.
type Issue struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Status          Status    `json:"status"`
	CreatedByUserID string    `json:"createdByUserId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// IssueEvent is one immutable record in an issue's append-only history.
// Delta fields are present only when that field changed in this event.
// Events are never mutated or deleted, except by cascade when the whole
// issue is deleted.
type IssueEvent struct {
	ID              int64         `json:"id"`
	IssueID         int64         `json:"issueId"`
	Type            EventType     `json:"type"`
	Title           *string       `json:"title,omitempty"`
	Description     *string       `json:"description,omitempty"`
	Status          *Status       `json:"status,omitempty"`
	Comment         *string       `json:"comment,omitempty"`
	CreatedByUserID string        `json:"createdByUserId"`
	CreatedAt       time.Time     `json:"createdAt"`
	CreatedBy       *identity.Ref `json:"createdBy,omitempty"`
}

// Delta is the subset of projection fields changed by one operation.
// Absent (nil) means unchanged; there is no "set to null" path, matching
// the closed field semantics of the projection.
type Delta struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return d.Title == nil && d.Description == nil && d.Status == nil
}

// IssueListItem is the row shape of the issue listing.
type IssueListItem struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IssueOrderField enumerates the sortable fields of the issue listing.
type IssueOrderField string

const (
	OrderCreatedAt IssueOrderField = "createdAt"
	OrderUpdatedAt IssueOrderField = "updatedAt"
	OrderTitle     IssueOrderField = "title"
	OrderStatus    IssueOrderField = "status"
)

// ValidOrderField reports whether f is sortable.
func ValidOrderField(f IssueOrderField) bool {
	switch f {
	case OrderCreatedAt, OrderUpdatedAt, OrderTitle, OrderStatus:
		return true
	}
	return false
}

// IssueFilter narrows the issue listing. Search is free text over title and
// description (sanitized before it reaches the store); Group restricts by
// status bucket.
type IssueFilter struct {
	Search string      `json:"search,omitempty"`
	Group  StatusGroup `json:"group,omitempty"`
}
