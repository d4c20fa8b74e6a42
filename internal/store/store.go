package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key has no stored value. Callers treat
	// it as "no session" rather than a failure.
	ErrNotFound = errors.New("store: key not found")
	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// Store is the session store contract. The backing medium is opaque to
// callers; backends are selected once at startup.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
