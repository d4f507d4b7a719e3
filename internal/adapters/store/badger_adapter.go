package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	badgerclient "github.com/nkechi/allergyjournal/backend/internal/infrastructure/clients/badgerdb"
)

// BadgerAdapter implements the KeyValueStore interface over embedded BadgerDB
type BadgerAdapter struct {
	client *badgerclient.Client
}

// NewBadgerAdapter creates a new BadgerDB store adapter
func NewBadgerAdapter(client *badgerclient.Client) providers.KeyValueStore {
	return &BadgerAdapter{client: client}
}

// Get retrieves the value for a key
func (a *BadgerAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := a.client.DB().View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return providers.ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a value under a key
func (a *BadgerAdapter) Set(ctx context.Context, key string, value []byte) error {
	err := a.client.DB().Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes a key; removing an absent key is not an error
func (a *BadgerAdapter) Remove(ctx context.Context, key string) error {
	err := a.client.DB().Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys returns every key currently in the store
func (a *BadgerAdapter) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := a.client.DB().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Close releases the underlying store
func (a *BadgerAdapter) Close() error {
	return a.client.Close()
}
