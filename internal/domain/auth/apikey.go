// Package auth defines the credential contracts for the admin surface.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no API key matches the given hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKey is a stored admin credential. Only the HMAC-SHA256 hash of the key
// material is persisted.
type APIKey struct {
	KeyHash   string
	Name      string
	CreatedAt time.Time
}

// Repository provides lookup of API keys by their hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}

// HashKey derives the stored hash for raw key material. Hashing with a
// server-side pepper means a database dump alone cannot be replayed as
// credentials.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}
