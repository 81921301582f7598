package services

import "errors"

// Domain errors returned by AuthService. Anything else bubbling out of
// an operation is an infrastructure failure, not part of this taxonomy.
var (
	// ErrEmailTaken is returned when registering an email that already
	// has an account.
	ErrEmailTaken = errors.New("user already exists")

	// ErrInvalidCredentials is returned for login with an unknown
	// email, an unverified account, or a wrong password. The three
	// causes are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials or unverified email")

	// ErrInvalidToken is returned for a verification or reset token
	// that was never issued or was already consumed.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrOtpExpiredOrMissing is returned when no live one-time code
	// exists for the user.
	ErrOtpExpiredOrMissing = errors.New("otp expired or not found")

	// ErrInvalidOtp is returned when the submitted code does not match
	// the live one.
	ErrInvalidOtp = errors.New("invalid otp")

	// ErrNotFound is returned when the referenced user does not exist.
	ErrNotFound = errors.New("user not found")
)
