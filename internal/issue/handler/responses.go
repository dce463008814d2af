package handler

import "tracker/internal/issue/models"

// addEventResponse returns both the appended event and the refreshed
// projection so clients can update their view without a second fetch.
type addEventResponse struct {
	Issue models.Issue      `json:"issue"`
	Event models.IssueEvent `json:"event"`
}
