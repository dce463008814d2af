package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"tracker/internal/identity/service"
	"tracker/internal/identity/store/session"
	"tracker/internal/identity/store/user"
)

type AuthHandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	auth := service.New(user.NewInMemoryStore(), session.NewInMemoryStore(), service.Config{
		SigningKey: "test-signing-key",
		DevMode:    true,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := New(auth, logger, nil)
	s.router = chi.NewRouter()
	handler.Register(s.router)
}

func (s *AuthHandlerSuite) login(username, password string) *httptest.ResponseRecorder {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AuthHandlerSuite) TestLogin() {
	s.Run("dev credentials return token and user", func() {
		w := s.login("admin", "admin")
		s.Equal(http.StatusOK, w.Code)

		var resp map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.NotEmpty(resp["token"])
		user := resp["user"].(map[string]any)
		s.Equal("admin-id", user["id"])
	})

	s.Run("wrong password is unauthorized", func() {
		w := s.login("admin", "nope")
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("missing fields are rejected", func() {
		w := s.login("admin", "")
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *AuthHandlerSuite) TestMe() {
	w := s.login("user", "user")
	s.Require().Equal(http.StatusOK, w.Code)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	token := resp["token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	var me map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &me))
	s.Equal("user-id", me["id"])
	s.Equal("User", me["name"])
}

func (s *AuthHandlerSuite) TestLogoutRevokesToken() {
	w := s.login("user", "user")
	s.Require().Equal(http.StatusOK, w.Code)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	token := resp["token"].(string)

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, logout)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	// The token's signature is still valid, but its session is gone.
	me := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, me)
	s.Equal(http.StatusUnauthorized, rec.Code)
}
