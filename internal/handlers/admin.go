package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/services"
	"github.com/taskflow/apiserver/types"
)

// AdminHandler serves the user management and dashboard endpoints.
type AdminHandler struct {
	userService  *services.UserService
	statsService *services.StatsService
}

func NewAdminHandler(userService *services.UserService, statsService *services.StatsService) *AdminHandler {
	return &AdminHandler{userService: userService, statsService: statsService}
}

// AdminRouter registers admin routes. Every route requires an authenticated
// admin.
func AdminRouter(r chi.Router, userService *services.UserService, statsService *services.StatsService, requireAuth func(http.Handler) http.Handler) {
	handler := NewAdminHandler(userService, statsService)

	r.Use(requireAuth, RequireAdmin)
	r.Get("/users", handler.ListUsers)
	r.Patch("/users/{userID}/status", handler.UpdateUserStatus)
	r.Get("/stats", handler.Stats)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	resp := make([]types.PublicUser, 0, len(users))
	for _, user := range users {
		resp = append(resp, user.Public())
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateUserStatus activates or deactivates an account. Deactivation ends every
// session the account holds.
func (h *AdminHandler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	actor, _ := auth.IdentityFromContext(r.Context())
	user, err := h.userService.UpdateStatus(r.Context(), actor, chi.URLParam(r, "userID"), types.Status(req.Status))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UserStatusResponse{
		Message: "User status updated",
		User:    user.Public(),
	})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Dashboard(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type UserStatusResponse struct {
	Message string           `json:"message"`
	User    types.PublicUser `json:"user"`
}
