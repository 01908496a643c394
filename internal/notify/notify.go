// Package notify delivers turn-completion notifications. The log sink is
// the default; real transports implement chat.NotificationSink the same
// way.
package notify

import (
	"context"
	"log/slog"

	"github.com/leofalp/conduit/core/chat"
)

// LogSink writes notifications to the structured log. It never fails.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed notification sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, userID string, notification chat.Notification) error {
	s.logger.Info("notification",
		"user", userID,
		"kind", notification.Kind,
		"conversation", notification.ConversationID,
		"message", notification.MessageID.String(),
	)
	return nil
}
