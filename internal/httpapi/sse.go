package httpapi

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"

	"github.com/leofalp/conduit/core/chat"
)

// sseWriter serializes an event sequence as Server-Sent Events, flushing
// after every frame so deltas reach the client immediately.
type sseWriter struct {
	response http.ResponseWriter
	flusher  http.Flusher
	logger   *slog.Logger
	started  bool
}

func newSSEWriter(w http.ResponseWriter, logger *slog.Logger) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &sseWriter{response: w, flusher: flusher, logger: logger}, nil
}

// writeAll streams every event to the client. A payload that cannot be
// serialized is logged and skipped; a broken connection ends the stream.
func (w *sseWriter) writeAll(events iter.Seq[chat.Event]) {
	for event := range events {
		if !w.write(event) {
			return
		}
	}
}

func (w *sseWriter) write(event chat.Event) bool {
	payload, err := json.Marshal(event.WirePayload())
	if err != nil {
		w.logger.Error("skipping unserializable event",
			"event", string(event.Type), "error", err.Error())
		return true
	}

	w.start()
	if _, err := fmt.Fprintf(w.response, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		w.logger.Debug("client connection lost", "error", err.Error())
		return false
	}
	w.flusher.Flush()
	return true
}

// start sets the event-stream headers once, before the first frame.
func (w *sseWriter) start() {
	if w.started {
		return
	}
	w.started = true

	header := w.response.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.response.WriteHeader(http.StatusOK)
}
