// Package revocation records logged-out tokens until they would have
// expired anyway.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var ErrUnavailable = errors.New("revocation store unavailable")

type Store interface {
	// Revoke records token as revoked until expiresAt. Revoking twice is a no-op.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Key hashes the raw token so the store never holds a usable credential.
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
