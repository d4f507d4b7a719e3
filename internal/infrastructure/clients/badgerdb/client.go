package badgerdb

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/nkechi/allergyjournal/backend/pkg/config"
)

// Client represents an embedded BadgerDB client
type Client struct {
	db *badger.DB
}

// NewClient opens the embedded durable store
func NewClient(cfg *config.StoreConfig) (*Client, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	return &Client{db: db}, nil
}

// DB returns the underlying BadgerDB handle
func (c *Client) DB() *badger.DB {
	return c.db
}

// Close closes the store
func (c *Client) Close() error {
	return c.db.Close()
}
