package mailer

import (
	"context"
	"log/slog"
)

// LogMailer writes messages to the structured log instead of delivering
// them. Used in development when no SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.InfoContext(ctx, "mail (not delivered, no smtp host)",
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}
