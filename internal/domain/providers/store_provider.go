package providers

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when a key is absent from the store
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore defines the interface for the process-wide durable
// key-value byte store backing the note collection
type KeyValueStore interface {
	// Get retrieves the value for a key, or ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value under a key
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes a key; removing an absent key is not an error
	Remove(ctx context.Context, key string) error

	// Keys returns every key currently in the store
	Keys(ctx context.Context) ([]string, error)

	// Close releases the underlying store
	Close() error
}
