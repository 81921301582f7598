package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/authloop/authserver/internal/cache"
	"github.com/authloop/authserver/internal/mailer"
	"github.com/authloop/authserver/internal/otp"
	"github.com/authloop/authserver/internal/store"
	"github.com/authloop/authserver/internal/token"
	"github.com/authloop/authserver/types"
	"github.com/google/uuid"
)

// otpTTL bounds how long a one-time code stays live after login.
const otpTTL = 5 * time.Minute

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByVerificationToken(ctx context.Context, token string) (types.User, error)
	GetByResetToken(ctx context.Context, token string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// Auditor records successful state transitions. Recording must never
// block or fail a request.
type Auditor interface {
	Record(eventType types.AuditEventType, userID, email string)
}

// PasswordHasher hashes and verifies passwords with a slow one-way
// function.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// AuthService drives the credential lifecycle: registration, email
// verification, the password + OTP login handshake, password reset, and
// profile retrieval. Each operation is a single-record transition whose
// legality is enforced here; the HTTP layer only maps errors to status
// codes.
type AuthService struct {
	users     UserRepository
	codes     cache.CodeCache
	mail      mailer.Mailer
	tokens    *token.Issuer
	hasher    PasswordHasher
	auditor   Auditor
	logger    *slog.Logger
	publicURL string
}

func NewAuthService(
	users UserRepository,
	codes cache.CodeCache,
	mail mailer.Mailer,
	tokens *token.Issuer,
	hasher PasswordHasher,
	auditor Auditor,
	logger *slog.Logger,
	publicURL string,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:     users,
		codes:     codes,
		mail:      mail,
		tokens:    tokens,
		hasher:    hasher,
		auditor:   auditor,
		logger:    logger,
		publicURL: publicURL,
	}
}

// Register creates a pending-verification account and emails a
// verification link. The write commits regardless of whether the email
// goes out; a failed send is logged, not rolled back.
func (s *AuthService) Register(ctx context.Context, fullName, email, password string) (string, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	verificationToken := uuid.NewString()
	user, err := s.users.Create(ctx, types.User{
		FullName:          fullName,
		Email:             email,
		PasswordHash:      hash,
		IsVerified:        false,
		VerificationToken: &verificationToken,
		Role:              types.RoleUser,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	s.auditor.Record(types.AuditUserRegistered, user.ID, user.Email)
	s.sendMail(ctx, user.Email, "Verify Your Email",
		fmt.Sprintf("Welcome! Verify your email by opening:\n%s/api/auth/verify?token=%s",
			s.publicURL, verificationToken))

	return "Registration successful. Check your email to verify.", nil
}

// VerifyEmail consumes a verification token. Tokens are single-use: the
// successful transition clears the token, so resubmitting it fails.
func (s *AuthService) VerifyEmail(ctx context.Context, verificationToken string) (string, error) {
	user, err := s.users.GetByVerificationToken(ctx, verificationToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("lookup verification token: %w", err)
	}

	user.IsVerified = true
	user.VerificationToken = nil
	if _, err := s.users.Update(ctx, user); err != nil {
		return "", fmt.Errorf("mark verified: %w", err)
	}

	s.auditor.Record(types.AuditEmailVerified, user.ID, user.Email)
	return "Email verified successfully", nil
}

// Login checks the password factor and, on success, issues a one-time
// code instead of a session token. Unknown email, unverified account,
// and wrong password all fail identically so callers cannot enumerate
// accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsVerified {
		return "", "", ErrInvalidCredentials
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return "", "", ErrInvalidCredentials
	}

	code, err := otp.Generate()
	if err != nil {
		return "", "", fmt.Errorf("generate otp: %w", err)
	}
	// Overwrites any prior live code for this user.
	if err := s.codes.Set(ctx, user.ID, code, otpTTL); err != nil {
		return "", "", fmt.Errorf("store otp: %w", err)
	}

	s.auditor.Record(types.AuditOtpIssued, user.ID, user.Email)
	s.sendMail(ctx, user.Email, "Your Login OTP",
		fmt.Sprintf("Your OTP is: %s. Valid for 5 minutes.", code))

	return "OTP sent to your email", user.ID, nil
}

// VerifyOtp consumes the live one-time code and mints a session token.
// The code is deleted before the token is issued, so it can be used at
// most once.
func (s *AuthService) VerifyOtp(ctx context.Context, userID, code string) (string, error) {
	stored, ok, err := s.codes.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read otp: %w", err)
	}
	if !ok {
		return "", ErrOtpExpiredOrMissing
	}
	if !otp.Equal(stored, code) {
		return "", ErrInvalidOtp
	}
	if err := s.codes.Delete(ctx, userID); err != nil {
		return "", fmt.Errorf("consume otp: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	sessionToken, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}

	s.auditor.Record(types.AuditLoginSucceeded, user.ID, user.Email)
	return sessionToken, nil
}

// ForgotPassword issues a reset token and emails a reset link. A newer
// request overwrites any outstanding token.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	resetToken := uuid.NewString()
	user.ResetToken = &resetToken
	if _, err := s.users.Update(ctx, user); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	s.auditor.Record(types.AuditResetRequested, user.ID, user.Email)
	s.sendMail(ctx, user.Email, "Reset Your Password",
		fmt.Sprintf("Reset your password by opening:\n%s/api/auth/reset-password?token=%s",
			s.publicURL, resetToken))

	return "Reset link sent to your email", nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) (string, error) {
	user, err := s.users.GetByResetToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("lookup reset token: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ResetToken = nil
	if _, err := s.users.Update(ctx, user); err != nil {
		return "", fmt.Errorf("store new password: %w", err)
	}

	s.auditor.Record(types.AuditPasswordReset, user.ID, user.Email)
	return "Password reset successfully", nil
}

// GetProfile returns the non-sensitive projection of a user.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (types.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, fmt.Errorf("load user: %w", err)
	}

	s.auditor.Record(types.AuditProfileViewed, user.ID, "")
	return user.Profile(), nil
}

// sendMail delivers a notification best-effort. The triggering store
// mutation is already committed; a delivery failure must not undo it.
func (s *AuthService) sendMail(ctx context.Context, to, subject, body string) {
	if err := s.mail.Send(ctx, to, subject, body); err != nil {
		s.logger.Error("notification send failed", "to", to, "subject", subject, "error", err)
	}
}
