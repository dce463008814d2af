package handler

import (
	"net/http"
	"strconv"

	"tracker/internal/issue/models"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/listquery"
)

// parseListInput reads the listing query parameters. Bounds and sort-field
// validity are checked by the service; this only rejects non-numeric values.
func parseListInput(r *http.Request) (listquery.Input[models.IssueOrderField, models.IssueFilter], error) {
	var input listquery.Input[models.IssueOrderField, models.IssueFilter]
	query := r.URL.Query()

	if raw := query.Get("take"); raw != "" {
		take, err := strconv.Atoi(raw)
		if err != nil {
			return input, dErrors.New(dErrors.CodeBadRequest, "take must be a number")
		}
		input.Take = take
	}
	if raw := query.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			return input, dErrors.New(dErrors.CodeBadRequest, "skip must be a number")
		}
		input.Skip = skip
	}

	if field := query.Get("sort"); field != "" {
		direction := listquery.Direction(query.Get("dir"))
		if direction == "" {
			direction = listquery.Asc
		}
		input.Order = &listquery.Order[models.IssueOrderField]{
			Field:     models.IssueOrderField(field),
			Direction: direction,
		}
	}

	input.Filter = models.IssueFilter{
		Search: query.Get("search"),
		Group:  models.StatusGroup(query.Get("group")),
	}
	return input, nil
}
