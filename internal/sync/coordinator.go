package sync

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marcus/fin/internal/models"
)

// ApplyPushEvent applies a single push event against the entity tables and the
// change log within the given transaction. The caller owns the transaction and
// the per-user serialization around it; one event maps to one transaction so a
// mid-batch failure leaves earlier events committed.
//
// A *ValidationError return means the event is malformed and the whole request
// should be rejected with a client error. Any other error is a storage failure.
func ApplyPushEvent(tx *sql.Tx, userID string, ev Event) (Disposition, error) {
	if strings.TrimSpace(ev.MutationID) == "" {
		return 0, validationErrorf("mutation_id is required")
	}
	if strings.TrimSpace(ev.EntityID) == "" {
		return 0, validationErrorf("entity_id is required")
	}
	if !ValidEntityType(ev.EntityType) {
		return 0, validationErrorf("unsupported entity_type: %s", ev.EntityType)
	}
	if !ValidAction(ev.Action) {
		return 0, validationErrorf("unsupported action: %s", ev.Action)
	}

	// Idempotency: a mutation id already in the log means this is a replay.
	logged, err := mutationLogged(tx, ev.MutationID)
	if err != nil {
		return 0, err
	}
	if logged {
		slog.Debug("push replay", "mutation", ev.MutationID)
		return DispositionDuplicate, nil
	}

	switch ev.EntityType {
	case EntityCategory:
		return applyCategoryEvent(tx, userID, ev)
	default:
		return applyTransactionEvent(tx, userID, ev)
	}
}

// mutationLogged checks the change log for the idempotency key.
func mutationLogged(tx *sql.Tx, mutationID string) (bool, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM sync_events WHERE mutation_id = ?`, mutationID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup mutation %s: %w", mutationID, err)
	}
	return true, nil
}

func applyCategoryEvent(tx *sql.Tx, userID string, ev Event) (Disposition, error) {
	current, err := entityVersion(tx, "categories", ev.EntityID, userID)
	if err != nil {
		return 0, err
	}

	// Stale client view: drop silently. The client converges via its own pull.
	if ev.BaseVersion < current {
		slog.Debug("stale category push dropped", "entity", ev.EntityID, "base", ev.BaseVersion, "current", current)
		return DispositionStale, nil
	}

	if ev.Action == ActionDelete {
		if current == 0 {
			return DispositionNoop, nil
		}
		next := current + 1
		if err := markDeleted(tx, "categories", ev.EntityID, userID, current, next); err != nil {
			return 0, err
		}
		if err := appendRecord(tx, userID, ev, next, nil); err != nil {
			return 0, err
		}
		return DispositionApplied, nil
	}

	payload, err := parseCategoryPayload(ev.Payload, userID)
	if err != nil {
		return 0, err
	}
	payload.ID = ev.EntityID
	payload.UserID = userID

	next := current + 1
	if current == 0 {
		_, err = tx.Exec(
			`INSERT INTO categories (id, user_id, name, type, version, is_deleted) VALUES (?, ?, ?, ?, ?, 0)`,
			ev.EntityID, userID, payload.Name, payload.Type, next,
		)
	} else {
		_, err = tx.Exec(
			`UPDATE categories SET name = ?, type = ?, version = ?, is_deleted = 0
			 WHERE id = ? AND user_id = ? AND version = ?`,
			payload.Name, payload.Type, next, ev.EntityID, userID, current,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert category %s: %w", ev.EntityID, err)
	}

	normalized, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal category payload: %w", err)
	}
	if err := appendRecord(tx, userID, ev, next, normalized); err != nil {
		return 0, err
	}
	return DispositionApplied, nil
}

func applyTransactionEvent(tx *sql.Tx, userID string, ev Event) (Disposition, error) {
	current, err := entityVersion(tx, "transactions", ev.EntityID, userID)
	if err != nil {
		return 0, err
	}

	if ev.BaseVersion < current {
		slog.Debug("stale transaction push dropped", "entity", ev.EntityID, "base", ev.BaseVersion, "current", current)
		return DispositionStale, nil
	}

	if ev.Action == ActionDelete {
		if current == 0 {
			return DispositionNoop, nil
		}
		next := current + 1
		if err := markDeleted(tx, "transactions", ev.EntityID, userID, current, next); err != nil {
			return 0, err
		}
		if err := appendRecord(tx, userID, ev, next, nil); err != nil {
			return 0, err
		}
		return DispositionApplied, nil
	}

	payload, err := parseTransactionPayload(ev.Payload, userID)
	if err != nil {
		return 0, err
	}
	payload.ID = ev.EntityID
	payload.UserID = userID

	next := current + 1
	if current == 0 {
		_, err = tx.Exec(
			`INSERT INTO transactions (id, user_id, category_id, type, amount, note, date, version, is_deleted)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			ev.EntityID, userID, payload.CategoryID, payload.Type, payload.Amount, payload.Note, payload.Date, next,
		)
	} else {
		_, err = tx.Exec(
			`UPDATE transactions SET category_id = ?, type = ?, amount = ?, note = ?, date = ?, version = ?, is_deleted = 0
			 WHERE id = ? AND user_id = ? AND version = ?`,
			payload.CategoryID, payload.Type, payload.Amount, payload.Note, payload.Date, next, ev.EntityID, userID, current,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert transaction %s: %w", ev.EntityID, err)
	}

	normalized, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal transaction payload: %w", err)
	}
	if err := appendRecord(tx, userID, ev, next, normalized); err != nil {
		return 0, err
	}
	return DispositionApplied, nil
}

// parseCategoryPayload validates the entity payload of a category PUT.
func parseCategoryPayload(raw json.RawMessage, userID string) (*CategoryPayload, error) {
	obj, err := unwrapPayload(raw)
	if err != nil || obj == nil {
		return nil, validationErrorf("category payload is required")
	}
	var p CategoryPayload
	if err := json.Unmarshal(obj, &p); err != nil {
		return nil, validationErrorf("malformed category payload: %v", err)
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, validationErrorf("category name is required")
	}
	if !models.ValidEntryType(p.Type) {
		return nil, validationErrorf("category type is required")
	}
	if p.UserID != "" && p.UserID != userID {
		return nil, validationErrorf("payload user_id mismatch")
	}
	return &p, nil
}

// parseTransactionPayload validates the entity payload of a transaction PUT.
func parseTransactionPayload(raw json.RawMessage, userID string) (*TransactionPayload, error) {
	obj, err := unwrapPayload(raw)
	if err != nil || obj == nil {
		return nil, validationErrorf("transaction payload is required")
	}
	var p TransactionPayload
	if err := json.Unmarshal(obj, &p); err != nil {
		return nil, validationErrorf("malformed transaction payload: %v", err)
	}
	if p.UserID != "" && p.UserID != userID {
		return nil, validationErrorf("payload user_id mismatch")
	}
	if strings.TrimSpace(p.CategoryID) == "" || !models.ValidEntryType(p.Type) || p.Date == 0 {
		return nil, validationErrorf("transaction requires category_id, type, amount, and date")
	}
	return &p, nil
}

// entityVersion returns the current version for (table, id, user), 0 if the
// row does not exist yet.
func entityVersion(tx *sql.Tx, table, entityID, userID string) (int64, error) {
	var v int64
	query := fmt.Sprintf(`SELECT version FROM %s WHERE id = ? AND user_id = ?`, table)
	err := tx.QueryRow(query, entityID, userID).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("version lookup %s/%s: %w", table, entityID, err)
	}
	return v, nil
}

// markDeleted soft-deletes a row, bumping its version. The version predicate
// makes the write a compare-and-set so a concurrent bump cannot be lost.
func markDeleted(tx *sql.Tx, table, entityID, userID string, current, next int64) error {
	query := fmt.Sprintf(`UPDATE %s SET version = ?, is_deleted = 1 WHERE id = ? AND user_id = ? AND version = ?`, table)
	if _, err := tx.Exec(query, next, entityID, userID, current); err != nil {
		return fmt.Errorf("mark deleted %s/%s: %w", table, entityID, err)
	}
	return nil
}

// appendRecord appends one change-log row; the autoincrement id becomes the
// record's cursor.
func appendRecord(tx *sql.Tx, userID string, ev Event, version int64, payload []byte) error {
	var payloadStr any
	if payload != nil {
		payloadStr = string(payload)
	}
	_, err := tx.Exec(
		`INSERT INTO sync_events (user_id, mutation_id, entity_type, entity_id, action, version, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, ev.MutationID, ev.EntityType, ev.EntityID, ev.Action, version, payloadStr,
	)
	if err != nil {
		return fmt.Errorf("append change log %s: %w", ev.MutationID, err)
	}
	return nil
}

// MaxCursor returns the highest change-log cursor for the user, 0 when the
// user has no log records.
func MaxCursor(tx *sql.Tx, userID string) (int64, error) {
	var cursor int64
	err := tx.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM sync_events WHERE user_id = ?`, userID).Scan(&cursor)
	if err != nil {
		return 0, fmt.Errorf("max cursor: %w", err)
	}
	return cursor, nil
}

// RecordsSince returns the user's change-log records with cursor greater than
// afterCursor, ascending, excluding the given mutation ids. Ascending cursor
// order is load-bearing: a later PUT for an entity must be replayed after an
// earlier one, and category creations precede the transactions that reference
// them.
func RecordsSince(tx *sql.Tx, userID string, afterCursor int64, exclude []string) ([]Record, error) {
	query := `SELECT id, mutation_id, entity_type, entity_id, action, version, payload
	          FROM sync_events WHERE user_id = ? AND id > ?`
	args := []any{userID, afterCursor}
	if len(exclude) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(exclude)), ", ")
		query += fmt.Sprintf(" AND mutation_id NOT IN (%s)", placeholders)
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += " ORDER BY id ASC"

	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query change log: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var payload sql.NullString
		if err := rows.Scan(&r.Cursor, &r.MutationID, &r.EntityType, &r.EntityID, &r.Action, &r.Version, &payload); err != nil {
			return nil, fmt.Errorf("scan change log row: %w", err)
		}
		if payload.Valid {
			r.Payload = &payload.String
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("change log rows: %w", err)
	}
	return records, nil
}
