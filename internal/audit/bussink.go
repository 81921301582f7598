package audit

import (
	"context"
	"encoding/json"

	"github.com/authloop/authserver/internal/bus"
	"github.com/authloop/authserver/types"
)

// BusSink publishes events as JSON to the audit event bus, for the tail
// command and the archiver to consume.
type BusSink struct {
	bus bus.Bus
}

func NewBusSink(b bus.Bus) *BusSink {
	return &BusSink{bus: b}
}

func (s *BusSink) Emit(ctx context.Context, event types.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	attrs := map[string]string{"event_type": string(event.Type)}
	_, err = s.bus.Publish(ctx, body, attrs)
	return err
}
