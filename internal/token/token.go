// Package token issues and verifies the signed session tokens minted
// after a successful OTP confirmation.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/authloop/authserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// TTL is the fixed session token lifetime. There is no refresh flow;
// an expired token requires a full login.
const TTL = time.Hour

// ErrInvalidOrExpired is returned for any token that fails signature,
// shape, or expiry checks.
var ErrInvalidOrExpired = errors.New("invalid or expired token")

// Claims is the session claim set: identity plus role, bounded by
// iat/exp from the registered claims.
type Claims struct {
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates session tokens with a process-wide
// symmetric secret.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue mints a session token for the user, expiring TTL after issuance.
func (i *Issuer) Issue(user types.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses and validates a session token, returning its claims.
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidOrExpired
	}
	if strings.TrimSpace(claims.Subject) == "" || !claims.Role.Valid() {
		return Claims{}, ErrInvalidOrExpired
	}
	return claims, nil
}
