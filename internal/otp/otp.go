// Package otp generates and checks the numeric one-time codes used as a
// second login factor.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// Digits is the length of generated codes.
const Digits = 6

// codeSpace is 10^Digits, the number of possible codes.
var codeSpace = big.NewInt(1000000)

// Generate returns a uniformly random numeric code of Digits length,
// zero-padded.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", Digits, n), nil
}

// Equal compares a submitted code against the stored one in constant
// time, so a mismatch reveals nothing about matching prefixes.
func Equal(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
