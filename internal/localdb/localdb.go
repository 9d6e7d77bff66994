// Package localdb is the client-side keyed store. It mirrors the
// server's categories and transactions for the local user, holds the
// outbox of pending mutations, and remembers the last sync cursor.
package localdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketCategories    = []byte("categories")
	bucketTransactions  = []byte("transactions")
	bucketOutbox        = []byte("outbox")
	bucketOutboxCreated = []byte("outbox_created")
	bucketOutboxEntity  = []byte("outbox_entity")
	bucketMeta          = []byte("meta")
)

var allBuckets = [][]byte{
	bucketCategories,
	bucketTransactions,
	bucketOutbox,
	bucketOutboxCreated,
	bucketOutboxEntity,
	bucketMeta,
}

// Store is a single-user local database backed by bbolt.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the store at path, creating parent directories
// and all buckets as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the filesystem location of the store.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}
