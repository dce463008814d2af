// Package handler exposes the issue API over HTTP. Reads are public;
// mutations require a bearer token.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tracker/internal/identity"
	"tracker/internal/issue/models"
	"tracker/internal/issue/service"
	"tracker/internal/platform/metrics"
	"tracker/internal/platform/middleware"
	"tracker/internal/transport/http/shared"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/listquery"
)

// Service defines the interface for issue operations.
type Service interface {
	Create(ctx context.Context, input service.CreateInput, actor *identity.User) (models.Issue, error)
	Get(ctx context.Context, id int64) (models.Issue, error)
	List(ctx context.Context, input listquery.Input[models.IssueOrderField, models.IssueFilter]) (listquery.Output[models.IssueListItem], error)
	AddEvent(ctx context.Context, issueID int64, input service.AddEventInput, actor *identity.User) (models.Issue, models.IssueEvent, error)
	ListEvents(ctx context.Context, issueID int64, cursor *int64) (service.EventPage, error)
	Delete(ctx context.Context, id int64, actor *identity.User) error
}

// Handler handles issue-related endpoints.
type Handler struct {
	logger    *slog.Logger
	issues    Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a new issue Handler.
func New(
	issues Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		issues:    issues,
		metrics:   m,
		validator: validator,
	}
}

// Register registers the issue routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	issueRouter := chi.NewRouter()
	issueRouter.Use(middleware.Recovery(h.logger))
	issueRouter.Use(middleware.RequestID)
	issueRouter.Use(middleware.RequestTime)
	issueRouter.Use(middleware.Logger(h.logger))
	issueRouter.Use(middleware.Timeout(30 * time.Second))
	issueRouter.Use(middleware.ContentTypeJSON)
	issueRouter.Use(middleware.Latency(h.metrics))

	issueRouter.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(h.validator, h.logger))
		r.Get("/", h.handleList)
		r.Get("/{issueID}", h.handleGet)
		r.Get("/{issueID}/events", h.handleListEvents)
	})

	issueRouter.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/", h.handleCreate)
		r.Post("/{issueID}/events", h.handleAddEvent)
		r.Delete("/{issueID}", h.handleDelete)
	})

	r.Mount("/issues", issueRouter)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input service.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid create issue request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	issue, err := h.issues.Create(ctx, input, identity.UserOrNil(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create issue", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, issue)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issueID, err := issueIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	issue, err := h.issues.Get(ctx, issueID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load issue", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, issue)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input, err := parseListInput(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out, err := h.issues.List(ctx, input)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list issues", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issueID, err := issueIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var input service.AddEventInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid add event request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	issue, event, err := h.issues.AddEvent(ctx, issueID, input, identity.UserOrNil(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to add event", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, addEventResponse{Issue: issue, Event: event})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issueID, err := issueIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var cursor *int64
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid cursor"))
			return
		}
		cursor = &parsed
	}

	page, err := h.issues.ListEvents(ctx, issueID, cursor)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list events", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issueID, err := issueIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.issues.Delete(ctx, issueID, identity.UserOrNil(ctx)); err != nil {
		h.writeServiceError(ctx, w, "failed to delete issue", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError logs unexpected failures and writes the error envelope.
// Expected domain errors pass through with their own code.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.Is(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}

func issueIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "issueID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid issue ID")
	}
	return id, nil
}
