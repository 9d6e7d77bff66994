package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/fin/internal/localdb"
	"github.com/marcus/fin/internal/models"
)

// Staging applies an edit to the local mirror and queues the matching
// mutation in the outbox. The mirror keeps the last server-confirmed
// version; the mutation's base additionally counts edits still queued
// for the entity, so consecutive offline edits chain (base, base+1, ...)
// and all land in one round instead of the later ones arriving stale.

// StageCategoryPut records a category create or update.
func StageCategoryPut(store *localdb.Store, userID string, cat models.Category) (string, error) {
	existing, err := store.GetCategory(cat.ID)
	if err != nil {
		return "", err
	}
	var mirror int64
	if existing != nil {
		mirror = existing.Version
	}
	base, err := pendingAdjustedBase(store, cat.ID, mirror)
	if err != nil {
		return "", err
	}
	cat.Version = mirror
	cat.IsDeleted = false
	if err := store.PutCategory(cat); err != nil {
		return "", err
	}
	payload, err := json.Marshal(CategoryPayload{
		ID:     cat.ID,
		UserID: userID,
		Name:   cat.Name,
		Type:   cat.Type,
	})
	if err != nil {
		return "", fmt.Errorf("encoding category payload: %w", err)
	}
	return enqueue(store, EntityCategory, cat.ID, payload, base)
}

// StageCategoryDelete records a category deletion.
func StageCategoryDelete(store *localdb.Store, id string) (string, error) {
	existing, err := store.GetCategory(id)
	if err != nil {
		return "", err
	}
	var mirror int64
	if existing != nil {
		mirror = existing.Version
		existing.IsDeleted = true
		if err := store.PutCategory(*existing); err != nil {
			return "", err
		}
	}
	base, err := pendingAdjustedBase(store, id, mirror)
	if err != nil {
		return "", err
	}
	return enqueue(store, EntityCategory, id, nil, base)
}

// StageTransactionPut records a transaction create or update.
func StageTransactionPut(store *localdb.Store, userID string, txn models.Transaction) (string, error) {
	existing, err := store.GetTransaction(txn.ID)
	if err != nil {
		return "", err
	}
	var mirror int64
	if existing != nil {
		mirror = existing.Version
	}
	base, err := pendingAdjustedBase(store, txn.ID, mirror)
	if err != nil {
		return "", err
	}
	txn.Version = mirror
	txn.IsDeleted = false
	if err := store.PutTransaction(txn); err != nil {
		return "", err
	}
	payload, err := json.Marshal(TransactionPayload{
		ID:         txn.ID,
		UserID:     userID,
		CategoryID: txn.CategoryID,
		Type:       txn.Type,
		Amount:     txn.Amount,
		Note:       txn.Note,
		Date:       txn.Date,
	})
	if err != nil {
		return "", fmt.Errorf("encoding transaction payload: %w", err)
	}
	return enqueue(store, EntityTransaction, txn.ID, payload, base)
}

// StageTransactionDelete records a transaction deletion.
func StageTransactionDelete(store *localdb.Store, id string) (string, error) {
	existing, err := store.GetTransaction(id)
	if err != nil {
		return "", err
	}
	var mirror int64
	if existing != nil {
		mirror = existing.Version
		existing.IsDeleted = true
		if err := store.PutTransaction(*existing); err != nil {
			return "", err
		}
	}
	base, err := pendingAdjustedBase(store, id, mirror)
	if err != nil {
		return "", err
	}
	return enqueue(store, EntityTransaction, id, nil, base)
}

// pendingAdjustedBase raises the mirror version by the number of
// mutations already queued for the entity. Each queued edit, once
// accepted, advances the server by one, so the next edit must claim
// the version the chain will have reached.
func pendingAdjustedBase(store *localdb.Store, entityID string, mirror int64) (int64, error) {
	queued, err := store.PendingForEntity(entityID)
	if err != nil {
		return 0, err
	}
	return mirror + int64(len(queued)), nil
}

func enqueue(store *localdb.Store, entityType, entityID string, payload []byte, base int64) (string, error) {
	m := models.PendingMutation{
		MutationID:  uuid.NewString(),
		EntityType:  entityType,
		EntityID:    entityID,
		Payload:     payload,
		BaseVersion: base,
		CreatedAt:   time.Now(),
	}
	if err := store.Enqueue(m); err != nil {
		return "", fmt.Errorf("queueing mutation: %w", err)
	}
	return m.MutationID, nil
}
