// Package kv provides the keyspace backing live course state: a flat
// string store with per-key TTLs and atomic multi-key transactions.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("key not found")

// ReadTx is read-only access to the store within a transaction.
type ReadTx interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)
	// Keys returns all live keys beginning with prefix, in lexical order.
	Keys(prefix string) ([]string, error)
	// TTL returns the remaining lifetime of key. Zero means the key has
	// no expiry. Missing or expired keys yield ErrNotFound.
	TTL(key string) (time.Duration, error)
}

// Tx is read-write access to the store within an atomic update.
type Tx interface {
	ReadTx
	// Set stores value under key. A ttl of zero means no expiry.
	Set(key, value string, ttl time.Duration) error
	// SetNX stores value under key only if no live value exists there,
	// and reports whether it was stored.
	SetNX(key, value string, ttl time.Duration) (bool, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Store is a flat key-value store with TTL support and atomic updates.
// Implementations apply the writes of an Update all-or-nothing and do
// not interleave concurrent Updates.
type Store interface {
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(tx ReadTx) error) error
	// Update runs fn in a transaction. Writes are applied only if fn
	// returns nil; on error the store is left unchanged.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// PurgeExpired removes expired entries, returning how many were removed.
	PurgeExpired(ctx context.Context) (int, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Get reads a single key outside a transaction.
func Get(ctx context.Context, s Store, key string) (string, error) {
	var v string
	err := s.View(ctx, func(tx ReadTx) error {
		var err error
		v, err = tx.Get(key)
		return err
	})
	return v, err
}

// Set writes a single key outside a transaction.
func Set(ctx context.Context, s Store, key, value string, ttl time.Duration) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.Set(key, value, ttl)
	})
}

// SetNX writes key only if no live value exists, reporting whether it was written.
func SetNX(ctx context.Context, s Store, key, value string, ttl time.Duration) (bool, error) {
	var set bool
	err := s.Update(ctx, func(tx Tx) error {
		var err error
		set, err = tx.SetNX(key, value, ttl)
		return err
	})
	return set, err
}

// Delete removes a single key outside a transaction.
func Delete(ctx context.Context, s Store, key string) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.Delete(key)
	})
}

// Keys lists live keys with the given prefix outside a transaction.
func Keys(ctx context.Context, s Store, prefix string) ([]string, error) {
	var keys []string
	err := s.View(ctx, func(tx ReadTx) error {
		var err error
		keys, err = tx.Keys(prefix)
		return err
	})
	return keys, err
}

// TTL reads the remaining lifetime of a key outside a transaction.
func TTL(ctx context.Context, s Store, key string) (time.Duration, error) {
	var d time.Duration
	err := s.View(ctx, func(tx ReadTx) error {
		var err error
		d, err = tx.TTL(key)
		return err
	})
	return d, err
}
