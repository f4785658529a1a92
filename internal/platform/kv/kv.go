// Package kv is the key/value persistence layer behind sessions and the
// election snapshot. Every mutation runs inside Update so multi-key writes
// land together or not at all.
package kv

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("kv: key not found")
	ErrConflict = errors.New("kv: transaction conflict")
	ErrReadOnly = errors.New("kv: read-only transaction")
	ErrClosed   = errors.New("kv: store is closed")
)

// Txn is a consistent view of the store. Writes are only visible to other
// callers after the surrounding Update returns nil.
type Txn interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Iterate visits keys with the given prefix in ascending order.
	Iterate(prefix string, fn func(key string, value []byte) error) error
}

type Store interface {
	View(ctx context.Context, fn func(txn Txn) error) error
	Update(ctx context.Context, fn func(txn Txn) error) error
	Close() error
}

// Get reads a single key outside of an explicit transaction.
func Get(ctx context.Context, store Store, key string) ([]byte, error) {
	var value []byte
	err := store.View(ctx, func(txn Txn) error {
		raw, err := txn.Get(key)
		if err != nil {
			return err
		}
		value = raw
		return nil
	})
	return value, err
}
