package sync

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/marcus/fin/internal/models"
)

// Entity type discriminants on the wire.
const (
	EntityCategory    = "CAT"
	EntityTransaction = "TXN"
)

// Mutation actions.
const (
	ActionPut    = "PUT"
	ActionDelete = "DELETE"
)

// ValidEntityType reports whether et is a supported entity type tag.
func ValidEntityType(et string) bool {
	return et == EntityCategory || et == EntityTransaction
}

// ValidAction reports whether a is a supported mutation action.
func ValidAction(a string) bool {
	return a == ActionPut || a == ActionDelete
}

// Event is a single client mutation submitted for application against the
// authoritative store. MutationID is the idempotency key; BaseVersion is the
// entity version the client believed was current when it made the edit.
type Event struct {
	MutationID  string
	EntityType  string
	EntityID    string
	Action      string
	BaseVersion int64
	Payload     json.RawMessage // required for PUT, absent for DELETE
}

// Record is one change-log row. Cursor is the per-user total order the client
// uses to ask for "everything after this point". Payload is the normalized
// serialized entity payload after apply, nil for deletions.
type Record struct {
	Cursor     int64
	MutationID string
	EntityType string
	EntityID   string
	Action     string
	Version    int64
	Payload    *string
}

// Disposition classifies the outcome of applying one push event.
type Disposition int

const (
	// DispositionApplied means the mutation was applied and logged.
	DispositionApplied Disposition = iota
	// DispositionDuplicate means the mutation id was already in the log;
	// the replay was a no-op but counts as accepted.
	DispositionDuplicate
	// DispositionStale means the client's base version was behind the store
	// and the mutation was silently dropped. Not accepted: the client learns
	// the newer state through its own pull.
	DispositionStale
	// DispositionNoop means a DELETE targeted an entity that does not exist.
	// Nothing is written or logged, but the mutation counts as accepted so
	// the client stops retrying it.
	DispositionNoop
)

// Accepted reports whether the disposition should land in the response's
// processed mutation id list.
func (d Disposition) Accepted() bool {
	return d == DispositionApplied || d == DispositionDuplicate || d == DispositionNoop
}

// ValidationError marks a push event the coordinator refused because its
// shape or payload is malformed. The API layer maps it to a 400; everything
// else is a storage failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// CategoryPayload is the entity payload carried by category PUT mutations.
type CategoryPayload struct {
	ID     string           `json:"id"`
	UserID string           `json:"user_id,omitempty"`
	Name   string           `json:"name"`
	Type   models.EntryType `json:"type"`
}

// TransactionPayload is the entity payload carried by transaction PUT
// mutations. Date is unix milliseconds.
type TransactionPayload struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id,omitempty"`
	CategoryID string           `json:"category_id"`
	Type       models.EntryType `json:"type"`
	Amount     float64          `json:"amount"`
	Note       string           `json:"note"`
	Date       int64            `json:"date"`
}

// unwrapPayload returns the payload as an object, unwrapping one level of
// string encoding. Clients that serialize the entity payload before embedding
// it send a JSON string whose content is the object.
func unwrapPayload(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("unwrap payload string: %w", err)
		}
		return json.RawMessage(inner), nil
	}
	return trimmed, nil
}

// SortPushEvents reorders a batch so all category mutations precede all
// transaction mutations, preserving client order within each partition.
// Transactions reference category ids that may be created in the same batch,
// so categories must commit first.
func SortPushEvents(events []Event) []Event {
	sorted := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.EntityType == EntityCategory {
			sorted = append(sorted, ev)
		}
	}
	for _, ev := range events {
		if ev.EntityType != EntityCategory {
			sorted = append(sorted, ev)
		}
	}
	return sorted
}
