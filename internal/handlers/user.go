package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskflow/apiserver/internal/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers profile routes. A user may read their own profile;
// admins may read any.
func UserRouter(r chi.Router, userService *services.UserService, requireAuth func(http.Handler) http.Handler) {
	handler := NewUserHandler(userService)

	r.With(requireAuth, RequireOwnerOrAdmin("userID")).Get("/{userID}", handler.GetUser)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}
