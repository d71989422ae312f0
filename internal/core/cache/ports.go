package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Transaction when a watched key changed before commit.
	ErrConflict = errors.New("transaction conflict")
)

// TxFunc receives the current values of the watched keys (absent keys are
// missing from the map) and returns the writes to apply atomically.
// A nil value deletes the key. Returning an error aborts without writing.
type TxFunc func(current map[string][]byte) (map[string][]byte, error)

// Cache defines the key-value store operations interface following hexagonal architecture.
// This is a port that can be implemented by different providers (Redis, Memcached, etc.).
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the specified key and TTL.
	// TTL of 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores a value only if the key does not exist yet.
	// It reports whether the value was stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Transaction runs fn under optimistic locking of keys and commits its
	// writes atomically. Returns ErrConflict if any key changed meanwhile.
	Transaction(ctx context.Context, keys []string, fn TxFunc) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the connection.
	Close() error
}
