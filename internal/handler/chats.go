// Package handler provides HTTP handlers for the chat gateway.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatstream/internal/chat"
	"github.com/capitalize-ai/chatstream/internal/middleware"
	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/pkg/logger"
)

// History lists saved chats.
type History interface {
	List(ctx context.Context, username string) ([]model.ChatRecord, error)
}

// ChatHandler handles chat session endpoints.
type ChatHandler struct {
	registry *chat.Registry
	history  History
	logger   *logger.Logger
}

// NewChatHandler creates a new chat handler. history may be nil, in
// which case List reports the live sessions.
func NewChatHandler(registry *chat.Registry, history History, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		registry: registry,
		history:  history,
		logger:   log.OrNop(),
	}
}

// session resolves the {id} route parameter to a session of the caller.
// It writes the error response itself.
func session(w http.ResponseWriter, r *http.Request, registry *chat.Registry) (*chat.Session, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateChatID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	s, err := registry.Get(middleware.GetUsername(r.Context()), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return nil, false
	}
	return s, true
}

// Create handles POST /api/v1/chats
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	var req model.CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.registry.Create(username, &req)
	if err != nil {
		h.logger.Warn("failed to create chat", zap.String("username", username), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, s.Response())
}

// List handles GET /api/v1/chats
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := middleware.GetUsername(ctx)

	var chats []model.ChatRecord
	if h.history != nil {
		saved, err := h.history.List(ctx, username)
		if err != nil {
			h.logger.Error("failed to list chats", zap.String("username", username), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list chats")
			return
		}
		chats = saved
	} else {
		for _, s := range h.registry.List(username) {
			rec := s.Record()
			rec.Messages = nil
			chats = append(chats, *rec)
		}
	}
	if chats == nil {
		chats = []model.ChatRecord{}
	}

	writeJSON(w, http.StatusOK, &model.ListChatsResponse{
		Chats: chats,
		Total: len(chats),
	})
}

// Get handles GET /api/v1/chats/{id}
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r, h.registry)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Response())
}

// Delete handles DELETE /api/v1/chats/{id}
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r, h.registry)
	if !ok {
		return
	}

	if err := h.registry.Delete(s.Username(), s.ID); err != nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
