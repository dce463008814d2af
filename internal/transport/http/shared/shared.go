// Package shared holds response helpers used by every HTTP handler.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "tracker/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps a domain error code to an HTTP status and writes the
// standard error envelope. Unknown errors become 500s without leaking their
// message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, known := statusOf(code)

	body := errorBody{Error: string(code), Description: err.Error()}
	if !known || code == dErrors.CodeInternal {
		body = errorBody{Error: string(dErrors.CodeInternal), Description: "Internal server error"}
	}
	WriteJSON(w, status, body)
}

func statusOf(code dErrors.Code) (int, bool) {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest, true
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized, true
	case dErrors.CodeForbidden:
		return http.StatusForbidden, true
	case dErrors.CodeNotFound:
		return http.StatusNotFound, true
	case dErrors.CodeConflict:
		return http.StatusConflict, true
	default:
		return http.StatusInternalServerError, false
	}
}
