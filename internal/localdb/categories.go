package localdb

import (
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/marcus/fin/internal/models"
)

// GetCategory returns the stored category, or nil if absent.
func (s *Store) GetCategory(id string) (*models.Category, error) {
	var cat *models.Category
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCategories).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var c models.Category
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("decoding category %s: %w", id, err)
		}
		cat = &c
		return nil
	})
	return cat, err
}

// PutCategory stores or replaces a category.
func (s *Store) PutCategory(c models.Category) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding category: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCategories).Put([]byte(c.ID), raw)
	})
}

// DeleteCategory removes a category record entirely. Soft deletes are
// normally done via PutCategory with IsDeleted set; this is for local
// cleanup after a confirmed server delete.
func (s *Store) DeleteCategory(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCategories).Delete([]byte(id))
	})
}

// ListCategories returns all non-deleted categories sorted by name.
// Set includeDeleted to also return soft-deleted entries.
func (s *Store) ListCategories(includeDeleted bool) ([]models.Category, error) {
	var out []models.Category
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCategories).ForEach(func(_, raw []byte) error {
			var c models.Category
			if err := json.Unmarshal(raw, &c); err != nil {
				return fmt.Errorf("decoding category: %w", err)
			}
			if c.IsDeleted && !includeDeleted {
				return nil
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
