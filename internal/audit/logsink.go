package audit

import (
	"context"
	"log/slog"

	"github.com/authloop/authserver/types"
)

// LogSink writes events to the structured log. Fallback for deployments
// without a database table or event bus for the trail.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, event types.AuditEvent) error {
	s.logger.InfoContext(ctx, "audit event",
		"id", event.ID,
		"event_type", event.Type,
		"user_id", event.UserID,
		"email", event.Email,
		"timestamp", event.Timestamp,
	)
	return nil
}
