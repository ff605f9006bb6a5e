// Package freshness stores the CDN URL of each rendered card with the time it was uploaded.
package freshness

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Backend when the key has no value.
var ErrNotFound = errors.New("freshness: key not found")

// Backend is a raw string key/value store.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
