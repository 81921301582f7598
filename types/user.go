package types

import "time"

// Role is the authorization level assigned to a user account.
type Role string

const (
	// RoleUser is the default role for self-registered accounts.
	RoleUser Role = "USER"

	// RoleAdmin is reserved for seeded administrator accounts. There is
	// no self-promotion path through the public API.
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an account in the system.
// It contains identity, verification state, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, generated at creation.
	ID string `json:"id" db:"id"`

	// FullName is the user's display name.
	FullName string `json:"full_name" db:"full_name"`

	// Email is the user's email address. Unique, compared as stored.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsVerified is false at creation and becomes true after the user
	// proves ownership of the email address. It never reverts to false.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// VerificationToken is present only while email verification is
	// pending. Cleared exactly once, on successful verification.
	VerificationToken *string `json:"-" db:"verification_token"`

	// ResetToken is present only while a password reset request is
	// outstanding. Cleared on successful reset or overwritten by a
	// newer request.
	ResetToken *string `json:"-" db:"reset_token"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Profile is the non-sensitive projection of a User returned by the
// profile endpoint. Password hashes and pending tokens are never included.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile returns the non-sensitive projection of the user.
func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
