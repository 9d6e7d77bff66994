package localdb

import (
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/marcus/fin/internal/models"
)

// GetTransaction returns the stored transaction, or nil if absent.
func (s *Store) GetTransaction(id string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTransactions).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var t models.Transaction
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("decoding transaction %s: %w", id, err)
		}
		txn = &t
		return nil
	})
	return txn, err
}

// PutTransaction stores or replaces a transaction.
func (s *Store) PutTransaction(t models.Transaction) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding transaction: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).Put([]byte(t.ID), raw)
	})
}

// DeleteTransaction removes a transaction record entirely.
func (s *Store) DeleteTransaction(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).Delete([]byte(id))
	})
}

// ListTransactions returns all non-deleted transactions, newest first.
func (s *Store) ListTransactions(includeDeleted bool) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).ForEach(func(_, raw []byte) error {
			var t models.Transaction
			if err := json.Unmarshal(raw, &t); err != nil {
				return fmt.Errorf("decoding transaction: %w", err)
			}
			if t.IsDeleted && !includeDeleted {
				return nil
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
