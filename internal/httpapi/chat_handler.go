package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/leofalp/conduit/core/chat"
)

// userIDHeader carries the caller identity. Authentication lives upstream;
// the server trusts this header.
const userIDHeader = "X-User-Id"

const anonymousUser = "anonymous"

// ChatHandler serves the streaming chat endpoint.
type ChatHandler struct {
	orchestrator *chat.Orchestrator
	logger       *slog.Logger
}

// NewChatHandler builds the chat endpoint handler.
func NewChatHandler(orchestrator *chat.Orchestrator, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{orchestrator: orchestrator, logger: logger}
}

// Stream handles POST /api/chat: one chat turn streamed back as SSE.
// Validation failures are reported as a JSON 4xx before the stream starts;
// everything after the first frame travels inside the event sequence.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var request chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	request.UserID = requestUser(r)

	events, err := h.orchestrator.Run(r.Context(), request)
	if err != nil {
		var validation *chat.ValidationError
		if errors.As(err, &validation) {
			writeJSONError(w, http.StatusBadRequest, validation.Message)
			return
		}
		h.logger.Error("chat turn setup failed", "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writer, err := newSSEWriter(w, h.logger)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Last resort: a panic escaping the event sequence becomes a 500 or,
	// mid-stream, a terminal error frame. A vanished client stays silent.
	defer func() {
		rec := recover()
		if rec == nil || r.Context().Err() != nil {
			return
		}
		h.logger.Error("chat stream panicked", "panic", rec)
		if !writer.started {
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writer.write(chat.NewErrorEvent(chat.CodeGenerationFailed, "The chat stream failed unexpectedly.", "", true))
	}()

	writer.writeAll(events)
}

func requestUser(r *http.Request) string {
	if user := r.Header.Get(userIDHeader); user != "" {
		return user
	}
	return anonymousUser
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
