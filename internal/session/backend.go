package session

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by a Backend when a key is absent or expired.
var ErrKeyNotFound = errors.New("key not found")

// Backend is the external key/value store behind Store. Every method is
// atomic for its own key; Store never needs cross-key transactions.
type Backend interface {
	// SetFields replaces the flat record at key and sets its expiry.
	SetFields(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error

	// GetFields returns the record at key or ErrKeyNotFound.
	GetFields(ctx context.Context, key string) (map[string]string, error)

	// SetValue stores a plain string value at key with an expiry.
	SetValue(ctx context.Context, key, value string, ttl time.Duration) error

	// GetValue returns the string at key or ErrKeyNotFound.
	GetValue(ctx context.Context, key string) (string, error)

	// Delete removes key and reports whether anything was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// ScanValues returns every live string value whose key starts with prefix.
	ScanValues(ctx context.Context, prefix string) (map[string]string, error)
}
