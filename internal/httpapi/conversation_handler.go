package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leofalp/conduit/core/chat"
)

// ConversationHandler serves the conversation read endpoints.
type ConversationHandler struct {
	store  chat.ConversationStore
	logger *slog.Logger
}

// NewConversationHandler builds the conversation endpoints handler.
func NewConversationHandler(store chat.ConversationStore, logger *slog.Logger) *ConversationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationHandler{store: store, logger: logger}
}

// List handles GET /api/conversations: the caller's conversations, newest
// first, without message bodies.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.store.Conversations(r.Context(), requestUser(r))
	if err != nil {
		h.logger.Error("listing conversations failed", "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if conversations == nil {
		conversations = []chat.Conversation{}
	}
	writeJSON(w, http.StatusOK, conversations)
}

// Get handles GET /api/conversations/{id}: one conversation with its full
// message history. Callers only see their own conversations.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conversation, err := h.store.Conversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			writeJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("loading conversation failed", "id", id, "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if conversation.OwnerID != requestUser(r) {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, conversation)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
