package audit

import (
	"context"
	"database/sql"

	"github.com/authloop/authserver/types"
)

// PostgresSink appends events to the audit_events table.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Emit(ctx context.Context, event types.AuditEvent) error {
	const query = `
		INSERT INTO audit_events (id, event_type, user_id, email, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(
		ctx,
		query,
		event.ID,
		event.Type,
		event.UserID,
		nullIfEmpty(event.Email),
		event.Timestamp,
	)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
