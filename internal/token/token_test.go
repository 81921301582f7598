package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authloop/authserver/types"
)

func testUser() types.User {
	return types.User{
		ID:    "2f0c9f3e-6f4e-4f4f-9a25-0c6f3a1b2c3d",
		Email: "jane@x.com",
		Role:  types.RoleUser,
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret")

	signed, err := issuer.Issue(testUser())
	require.NoError(t, err)

	claims, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "2f0c9f3e-6f4e-4f4f-9a25-0c6f3a1b2c3d", claims.Subject)
	assert.Equal(t, "jane@x.com", claims.Email)
	assert.Equal(t, types.RoleUser, claims.Role)
}

func TestTokenExpiresOneHourAfterIssuance(t *testing.T) {
	issuer := NewIssuer("secret")

	signed, err := issuer.Issue(testUser())
	require.NoError(t, err)

	claims, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := NewIssuer("secret").Issue(testUser())
	require.NoError(t, err)

	_, err = NewIssuer("other-secret").Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewIssuer("secret").Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	// Forge an already-expired token with the same secret.
	past := time.Now().Add(-2 * time.Hour)
	claims := Claims{
		Email: "jane@x.com",
		Role:  types.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "some-user",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewIssuer("secret").Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	now := time.Now()
	claims := Claims{
		Email: "jane@x.com",
		Role:  types.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewIssuer("secret").Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}
