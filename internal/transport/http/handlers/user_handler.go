package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/middleware"
)

type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

// Search lists users whose name or email matches ?search=, never the caller.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	users, err := h.userService.Search(r.Context(), userID, r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, h.logger, "search users", err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}
