package types

import "time"

// AuditEventType names a successful credential lifecycle transition.
type AuditEventType string

const (
	AuditUserRegistered AuditEventType = "user.registered"
	AuditEmailVerified  AuditEventType = "user.email_verified"
	AuditOtpIssued      AuditEventType = "user.otp_issued"
	AuditLoginSucceeded AuditEventType = "user.login_succeeded"
	AuditResetRequested AuditEventType = "user.reset_requested"
	AuditPasswordReset  AuditEventType = "user.password_reset"
	AuditProfileViewed  AuditEventType = "user.profile_viewed"
)

// AuditEvent is a single append-only record of a state transition.
type AuditEvent struct {
	// ID is a unique identifier assigned when the event is recorded.
	ID string `json:"id"`

	// Type identifies the transition that occurred.
	Type AuditEventType `json:"type"`

	// UserID is the subject of the transition.
	UserID string `json:"user_id"`

	// Email is included when the transition involved an email address.
	Email string `json:"email,omitempty"`

	// Timestamp is when the transition was recorded.
	Timestamp time.Time `json:"timestamp"`
}
