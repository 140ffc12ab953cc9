// Package store is the key-value adapter every other component persists
// through. Values are opaque strings; expiry is enforced by the backend.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set writes value and its ttl in one operation.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete succeeds when the key is already absent.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
