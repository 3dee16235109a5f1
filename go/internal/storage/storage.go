// Package storage provides the durable key-value backends that mirror the
// browser session storage of a puzzle session.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// KV is a session-scoped key-value store. Values are opaque bytes; callers
// own their encoding.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
