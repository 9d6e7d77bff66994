package localdb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/marcus/fin/internal/models"
)

// Outbox layout:
//
//	outbox          mutation_id -> json(PendingMutation)
//	outbox_created  created_at(8 BE) + seq(8 BE) -> mutation_id
//	outbox_entity   entity_id + 0x00 + mutation_id -> mutation_id
//
// The created index gives drain order; the entity index lets a pulled
// delete discard still-pending local edits for that entity.

func createdKey(m models.PendingMutation) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(m.CreatedAt.UnixNano()))
	binary.BigEndian.PutUint64(key[8:], m.Seq)
	return key
}

func entityKey(entityID, mutationID string) []byte {
	key := make([]byte, 0, len(entityID)+1+len(mutationID))
	key = append(key, entityID...)
	key = append(key, 0)
	key = append(key, mutationID...)
	return key
}

// Enqueue appends a pending mutation to the outbox. The mutation's Seq
// is assigned here; CreatedAt must already be set.
func (s *Store) Enqueue(m models.PendingMutation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		outbox := tx.Bucket(bucketOutbox)
		seq, err := outbox.NextSequence()
		if err != nil {
			return fmt.Errorf("assigning outbox sequence: %w", err)
		}
		m.Seq = seq
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding pending mutation: %w", err)
		}
		if err := outbox.Put([]byte(m.MutationID), raw); err != nil {
			return err
		}
		if err := tx.Bucket(bucketOutboxCreated).Put(createdKey(m), []byte(m.MutationID)); err != nil {
			return err
		}
		return tx.Bucket(bucketOutboxEntity).Put(entityKey(m.EntityID, m.MutationID), []byte(m.MutationID))
	})
}

// PendingOrdered returns all pending mutations in enqueue order.
func (s *Store) PendingOrdered() ([]models.PendingMutation, error) {
	var out []models.PendingMutation
	err := s.db.View(func(tx *bolt.Tx) error {
		outbox := tx.Bucket(bucketOutbox)
		return tx.Bucket(bucketOutboxCreated).ForEach(func(_, mid []byte) error {
			raw := outbox.Get(mid)
			if raw == nil {
				return nil
			}
			var m models.PendingMutation
			if err := json.Unmarshal(raw, &m); err != nil {
				return fmt.Errorf("decoding pending mutation %s: %w", mid, err)
			}
			out = append(out, m)
			return nil
		})
	})
	return out, err
}

// PendingForEntity returns the pending mutations targeting one entity,
// in enqueue order.
func (s *Store) PendingForEntity(entityID string) ([]models.PendingMutation, error) {
	var out []models.PendingMutation
	err := s.db.View(func(tx *bolt.Tx) error {
		outbox := tx.Bucket(bucketOutbox)
		c := tx.Bucket(bucketOutboxEntity).Cursor()
		prefix := append([]byte(entityID), 0)
		for k, mid := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, mid = c.Next() {
			raw := outbox.Get(mid)
			if raw == nil {
				continue
			}
			var m models.PendingMutation
			if err := json.Unmarshal(raw, &m); err != nil {
				return fmt.Errorf("decoding pending mutation %s: %w", mid, err)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// RemoveByMutationIDs deletes the given mutations and their index
// entries. Unknown ids are ignored.
func (s *Store) RemoveByMutationIDs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		outbox := tx.Bucket(bucketOutbox)
		for _, id := range ids {
			raw := outbox.Get([]byte(id))
			if raw == nil {
				continue
			}
			var m models.PendingMutation
			if err := json.Unmarshal(raw, &m); err != nil {
				return fmt.Errorf("decoding pending mutation %s: %w", id, err)
			}
			if err := removePending(tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveByEntity drops every pending mutation targeting an entity.
// Used when a pulled delete supersedes local edits.
func (s *Store) RemoveByEntity(entityID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		outbox := tx.Bucket(bucketOutbox)
		c := tx.Bucket(bucketOutboxEntity).Cursor()
		prefix := append([]byte(entityID), 0)
		var doomed []models.PendingMutation
		for k, mid := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, mid = c.Next() {
			raw := outbox.Get(mid)
			if raw == nil {
				continue
			}
			var m models.PendingMutation
			if err := json.Unmarshal(raw, &m); err != nil {
				return fmt.Errorf("decoding pending mutation %s: %w", mid, err)
			}
			doomed = append(doomed, m)
		}
		for _, m := range doomed {
			if err := removePending(tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func removePending(tx *bolt.Tx, m models.PendingMutation) error {
	if err := tx.Bucket(bucketOutbox).Delete([]byte(m.MutationID)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketOutboxCreated).Delete(createdKey(m)); err != nil {
		return err
	}
	return tx.Bucket(bucketOutboxEntity).Delete(entityKey(m.EntityID, m.MutationID))
}

// CountPending reports the outbox depth.
func (s *Store) CountPending() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketOutbox).Stats().KeyN
		return nil
	})
	return n, err
}
