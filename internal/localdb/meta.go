package localdb

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"
)

var keyLastCursor = []byte("last_cursor")

// LastCursor returns the cursor from the last successful sync, or 0 if
// the store has never synced.
func (s *Store) LastCursor() (int64, error) {
	var cursor int64
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(keyLastCursor)
		if len(raw) == 8 {
			cursor = int64(binary.BigEndian.Uint64(raw))
		}
		return nil
	})
	return cursor, err
}

// SetLastCursor persists the cursor returned by the server.
func (s *Store) SetLastCursor(cursor int64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(cursor))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyLastCursor, raw)
	})
}
