// Package mailer delivers verification links, reset links, and one-time
// codes to the user's email address. Delivery is best-effort from the
// caller's perspective; failures are logged, never surfaced to users.
package mailer

import "context"

// Mailer sends a plain-text message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
