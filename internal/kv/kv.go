// Package kv provides the transactional key-value namespace that promptkit
// persists all of its state in.
//
// Every concern owns one key (or one key prefix): the prompt state, the
// preferences, the backup ring and the per-prompt variable caches. Callers
// never hold a value across transactions; they read, modify and write back
// inside a single [DB.Update] call.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by [Tx.Get] when the key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrReadOnly is returned when a write is attempted inside [DB.View].
	ErrReadOnly = errors.New("transaction is read-only")

	// ErrClosed is returned when the database has been closed.
	ErrClosed = errors.New("database is closed")

	// ErrFull is returned when a write would exceed the configured capacity.
	ErrFull = errors.New("storage capacity exceeded")
)

// Tx is a view of the namespace inside a transaction.
type Tx interface {
	// Get returns the value stored at key or [ErrNotFound].
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value at key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// DB is a transactional key-value store.
//
// Update runs fn in a write transaction: if fn returns nil the writes are
// committed, otherwise they are discarded and fn's error is returned. A
// failed commit is returned as an error and nothing is applied.
type DB interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Get is a convenience wrapper reading a single key in its own transaction.
func Get(ctx context.Context, db DB, key string) ([]byte, error) {
	var out []byte

	err := db.View(ctx, func(tx Tx) error {
		val, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}

		out = val

		return nil
	})

	return out, err
}

// Put is a convenience wrapper writing a single key in its own transaction.
func Put(ctx context.Context, db DB, key string, value []byte) error {
	return db.Update(ctx, func(tx Tx) error {
		return tx.Put(ctx, key, value)
	})
}
