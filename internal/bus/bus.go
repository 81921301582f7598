// Package bus transports audit events between the server, the tail
// command, and the archiver. Both backends publish to a single fixed
// channel; consumers ack after the handler succeeds.
package bus

import "context"

// Channel is the audit event channel name shared by all backends.
const Channel = "auth.audit.events"

// Delivery is one audit event payload received from the bus.
type Delivery struct {
	ID         string
	Body       []byte
	Attributes map[string]string
}

// Handler processes a delivery. Returning an error nacks the delivery
// for redelivery.
type Handler func(ctx context.Context, d Delivery) error

// Bus publishes and consumes audit event payloads.
type Bus interface {
	// Publish sends an event payload and returns the broker-assigned
	// message id.
	Publish(ctx context.Context, body []byte, attrs map[string]string) (string, error)

	// Subscribe consumes events until ctx is cancelled.
	Subscribe(ctx context.Context, handler Handler) error

	Close() error
}
