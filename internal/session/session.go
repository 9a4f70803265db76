// Package session provides per-visitor key/value storage and the cookie
// plumbing that assigns a session ID to each browser.
package session

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNoValue is returned by Store.Get when the key has no value in the
// given session.
var ErrNoValue = errors.New("session value not found")

// Store persists opaque values scoped to a single session. Implementations
// must treat sessions as independent namespaces: the same key in two
// sessions never collides.
type Store interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Delete(ctx context.Context, sessionID, key string) error
}
