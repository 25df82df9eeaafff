package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/types"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func withIdentity(r *http.Request, user types.User) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), user))
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Message
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), types.User{ID: "u", Role: types.RoleUser}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, auth.MsgAdminRequired, decodeMessage(t, rec))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), types.User{ID: "a", Role: types.RoleAdmin}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	user := types.User{ID: "u1", Role: types.RoleUser}
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, withIdentity(r, user))
		})
	})
	router.With(RequireOwnerOrAdmin("userID")).Get("/users/{userID}", okHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u2", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, auth.MsgNotOwner, decodeMessage(t, rec))
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{apperr.Validation("Title is required"), http.StatusBadRequest, "Title is required"},
		{apperr.NotFound("Task not found"), http.StatusNotFound, "Task not found"},
		{apperr.Forbidden("nope"), http.StatusForbidden, "nope"},
		{apperr.Unauthenticated(auth.MsgSessionExpired), http.StatusUnauthorized, auth.MsgSessionExpired},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "Server error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeAppError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.status, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, tt.message, decodeMessage(t, rec))
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query string
		page  int
		limit int
		fails bool
	}{
		{"", 1, 5, false},
		{"page=3&limit=20", 3, 20, false},
		{"limit=500", 1, 100, false},
		{"page=0", 0, 0, true},
		{"limit=abc", 0, 0, true},
	}
	for _, tt := range tests {
		page, limit, err := parsePagination(httptest.NewRequest(http.MethodGet, "/tasks?"+tt.query, nil))
		if tt.fails {
			assert.Error(t, err, tt.query)
			continue
		}
		require.NoError(t, err, tt.query)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.limit, limit, tt.query)
	}
}

func TestDateInput(t *testing.T) {
	var req UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":"2026-05-04"}`), &req))
	require.NotNil(t, req.DueDate.timePtr())
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), *req.DueDate.timePtr())

	req = UpdateTaskRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":"2026-05-04T10:00:00+02:00"}`), &req))
	assert.Equal(t, time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC), *req.DueDate.timePtr())

	req = UpdateTaskRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":null}`), &req))
	assert.Nil(t, req.DueDate.timePtr())

	err := json.Unmarshal([]byte(`{"dueDate":"next week"}`), &req)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDecodeJSON(t *testing.T) {
	var req LoginRequest

	rec := httptest.NewRecorder()
	err := decodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &req)
	assert.Equal(t, "Request body is required", apperr.MessageOf(err))

	err = decodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")), &req)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = decodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","password":"x"}`)), &req)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", req.Email)
}
