package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/middleware"
	"github.com/vedran77/relay/pkg/validator"
)

type ChatHandler struct {
	chatService *service.ChatService
	logger      *zap.Logger
}

func NewChatHandler(chatService *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, logger: logger}
}

type accessChatRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type renameGroupRequest struct {
	Name string `json:"name"`
}

type addMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

func (h *ChatHandler) Access(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req accessChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	conv, err := h.chatService.AccessDirect(r.Context(), userID, req.UserID)
	if err != nil {
		writeServiceError(w, h.logger, "access chat", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.chatService.ListConversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, "list chats", err)
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

func (h *ChatHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateGroupInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateGroupName(input.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	conv, err := h.chatService.CreateGroup(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, h.logger, "create group", err)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

func (h *ChatHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}

	var req renameGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validator.ValidateGroupName(req.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	conv, err := h.chatService.RenameGroup(r.Context(), userID, convID, req.Name)
	if err != nil {
		writeServiceError(w, h.logger, "rename group", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ChatHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}

	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	conv, err := h.chatService.AddMember(r.Context(), userID, convID, req.UserID)
	if err != nil {
		writeServiceError(w, h.logger, "add member", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// RemoveMember answers 204 when the removal dissolved the group.
func (h *ChatHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}
	memberID, ok := pathID(w, r, "uid", "user")
	if !ok {
		return
	}

	res, err := h.chatService.RemoveMember(r.Context(), userID, convID, memberID)
	if err != nil {
		writeServiceError(w, h.logger, "remove member", err)
		return
	}

	if res.Deleted {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res.Conversation)
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := pathID(w, r, "id", "chat")
	if !ok {
		return
	}

	if err := h.chatService.DeleteGroup(r.Context(), userID, convID); err != nil {
		writeServiceError(w, h.logger, "delete group", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
