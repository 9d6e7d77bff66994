package models

import "time"

// EntryType classifies a category or transaction as money in or money out.
type EntryType string

const (
	EntryExpense EntryType = "EXPENSE"
	EntryIncome  EntryType = "INCOME"
)

// ValidEntryType reports whether t is one of the two supported entry types.
func ValidEntryType(t EntryType) bool {
	return t == EntryExpense || t == EntryIncome
}

// Category is a user-defined bucket that transactions reference.
// Version starts at 1 on first accepted write and only ever increases.
// Deleted categories keep their row (IsDeleted set) so version continuity
// survives for later conflict checks.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      EntryType `json:"type"`
	Version   int64     `json:"version"`
	IsDeleted bool      `json:"is_deleted"`
}

// Transaction is a single ledger entry. Date is unix milliseconds, matching
// the wire payload format.
type Transaction struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	Type       EntryType `json:"type"`
	Amount     float64   `json:"amount"`
	Note       string    `json:"note"`
	Date       int64     `json:"date"`
	Version    int64     `json:"version"`
	IsDeleted  bool      `json:"is_deleted"`
}

// PendingMutation is a queued, not-yet-acknowledged local edit. Payload is the
// serialized entity payload for a PUT, or nil for a DELETE. Seq breaks ordering
// ties between mutations enqueued within the same nanosecond.
type PendingMutation struct {
	MutationID  string    `json:"mutation_id"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Payload     []byte    `json:"payload,omitempty"`
	BaseVersion int64     `json:"base_version"`
	CreatedAt   time.Time `json:"created_at"`
	Seq         uint64    `json:"seq"`
}

// IsDelete reports whether the pending mutation is a deletion (no payload).
func (m *PendingMutation) IsDelete() bool {
	return len(m.Payload) == 0
}
