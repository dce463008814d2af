// Package handler exposes login, logout and session introspection endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tracker/internal/identity"
	"tracker/internal/platform/metrics"
	"tracker/internal/platform/middleware"
	"tracker/internal/transport/http/shared"
	dErrors "tracker/pkg/domain-errors"
)

// Service defines the interface for identity operations.
type Service interface {
	Login(ctx context.Context, username, password string) (string, identity.User, error)
	Logout(ctx context.Context, sessionID string) error
	Validate(ctx context.Context, token string) (*identity.User, string, error)
}

// Handler handles auth endpoints.
type Handler struct {
	logger  *slog.Logger
	auth    Service
	metrics *metrics.Metrics
}

// New creates a new auth Handler.
func New(auth Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		auth:    auth,
		metrics: m,
	}
}

// Register registers the auth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	authRouter := chi.NewRouter()
	authRouter.Use(middleware.Recovery(h.logger))
	authRouter.Use(middleware.RequestID)
	authRouter.Use(middleware.Logger(h.logger))
	authRouter.Use(middleware.Timeout(10 * time.Second))
	authRouter.Use(middleware.ContentTypeJSON)
	authRouter.Use(middleware.Latency(h.metrics))

	authRouter.Post("/login", h.handleLogin)

	authRouter.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.auth, h.logger))
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
	})

	r.Mount("/auth", authRouter)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string        `json:"token"`
	User  identity.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "username and password required"))
		return
	}

	token, user, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"username", req.Username,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "login succeeded",
		"user_id", user.ID,
		"request_id", middleware.GetRequestID(ctx),
	)
	shared.WriteJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.auth.Logout(ctx, identity.SessionID(ctx)); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := identity.RequireUser(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, user)
}
