// Package cache provides the short-TTL store for one-time login codes.
// At most one live code exists per key; setting a new code overwrites
// the previous one, and a successful match deletes the entry.
package cache

import (
	"context"
	"time"
)

// CodeCache stores one-time codes keyed by user identity. Expiry is
// enforced by the cache itself, not polled by callers.
type CodeCache interface {
	// Set stores a code under key, overwriting any live entry.
	Set(ctx context.Context, key, code string, ttl time.Duration) error

	// Get returns the live code for key, or ok=false when no live
	// entry exists (never stored, consumed, or expired).
	Get(ctx context.Context, key string) (code string, ok bool, err error)

	// Delete removes the entry for key. Deleting an absent key is not
	// an error.
	Delete(ctx context.Context, key string) error
}
