package sync

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/marcus/fin/internal/localdb"
	"github.com/marcus/fin/internal/models"
	"github.com/marcus/fin/internal/syncclient"
)

// Session drives the client side of a sync round: drain the outbox,
// exchange with the server, reconcile pulled changes into the local
// mirror, and advance the cursor. Rounds are serialized; a Run that
// starts while another is in flight waits its turn.
type Session struct {
	mu     sync.Mutex
	Local  *localdb.Store
	Client *syncclient.Client
	UserID string
}

// Result summarizes one sync round.
type Result struct {
	Pushed    int
	Accepted  int
	Pulled    int
	NewCursor int64
}

// NewSession creates a session for one user against one server.
func NewSession(local *localdb.Store, client *syncclient.Client, userID string) *Session {
	return &Session{Local: local, Client: client, UserID: userID}
}

// Run executes a full sync round. The cursor is only advanced after
// every pulled change has been applied locally, so a crash mid-round
// re-pulls rather than losing records.
func (s *Session) Run() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lastCursor, err := s.Local.LastCursor()
	if err != nil {
		return nil, fmt.Errorf("reading cursor: %w", err)
	}
	pending, err := s.Local.PendingOrdered()
	if err != nil {
		return nil, fmt.Errorf("reading outbox: %w", err)
	}

	req := &syncclient.SyncRequest{
		UserID:     s.UserID,
		LastCursor: lastCursor,
		PushEvents: make([]syncclient.PushEventInput, 0, len(pending)),
	}
	byMutation := make(map[string]models.PendingMutation, len(pending))
	for _, m := range pending {
		byMutation[m.MutationID] = m
		action := ActionPut
		if m.IsDelete() {
			action = ActionDelete
		}
		req.PushEvents = append(req.PushEvents, syncclient.PushEventInput{
			MutationID:  m.MutationID,
			EntityType:  m.EntityType,
			EntityID:    m.EntityID,
			Action:      action,
			BaseVersion: m.BaseVersion,
			Payload:     json.RawMessage(m.Payload),
		})
	}

	resp, err := s.Client.Sync(req)
	if err != nil {
		return nil, err
	}

	if err := s.Local.RemoveByMutationIDs(resp.ProcessedMutationIDs); err != nil {
		return nil, fmt.Errorf("pruning outbox: %w", err)
	}

	pulledEntities := make(map[string]bool, len(resp.PullEvents))
	for _, ev := range resp.PullEvents {
		if err := s.applyPullEvent(ev); err != nil {
			return nil, fmt.Errorf("applying pulled change %s: %w", ev.MutationID, err)
		}
		pulledEntities[ev.EntityID] = true
		// A pulled change supersedes anything still queued for the
		// same entity; those edits were built against a stale base.
		if err := s.Local.RemoveByEntity(ev.EntityID); err != nil {
			return nil, fmt.Errorf("discarding stale outbox entries: %w", err)
		}
	}

	// Mutations the server accepted but did not echo back advanced the
	// server-side version to base+1. Bump the mirror to match so the
	// next edit carries the right base. Processed ids come back in
	// acceptance order, so for several edits to one entity the final
	// bump is the chain's tip.
	for _, id := range resp.ProcessedMutationIDs {
		m, ok := byMutation[id]
		if !ok || pulledEntities[m.EntityID] {
			continue
		}
		if err := s.bumpAccepted(m); err != nil {
			return nil, fmt.Errorf("advancing local version for %s: %w", m.EntityID, err)
		}
	}

	newCursor := resp.NewCursor
	if newCursor == 0 {
		newCursor = lastCursor
	}
	if err := s.Local.SetLastCursor(newCursor); err != nil {
		return nil, fmt.Errorf("persisting cursor: %w", err)
	}

	return &Result{
		Pushed:    len(pending),
		Accepted:  len(resp.ProcessedMutationIDs),
		Pulled:    len(resp.PullEvents),
		NewCursor: newCursor,
	}, nil
}

func (s *Session) applyPullEvent(ev syncclient.PullEvent) error {
	switch ev.EntityType {
	case EntityCategory:
		return s.applyPulledCategory(ev)
	case EntityTransaction:
		return s.applyPulledTransaction(ev)
	default:
		return fmt.Errorf("unknown entity type %q", ev.EntityType)
	}
}

func (s *Session) applyPulledCategory(ev syncclient.PullEvent) error {
	if ev.Action == ActionDelete {
		cat, err := s.Local.GetCategory(ev.EntityID)
		if err != nil {
			return err
		}
		if cat == nil {
			// Deleted before this client ever saw it. Keep a tombstone
			// so the version chain stays intact.
			cat = &models.Category{
				ID:   ev.EntityID,
				Name: "Unknown",
				Type: models.EntryExpense,
			}
		}
		cat.Version = ev.Version
		cat.IsDeleted = true
		return s.Local.PutCategory(*cat)
	}

	var p CategoryPayload
	if err := decodePullPayload(ev.Payload, &p); err != nil {
		return err
	}
	return s.Local.PutCategory(models.Category{
		ID:      ev.EntityID,
		Name:    p.Name,
		Type:    p.Type,
		Version: ev.Version,
	})
}

func (s *Session) applyPulledTransaction(ev syncclient.PullEvent) error {
	if ev.Action == ActionDelete {
		txn, err := s.Local.GetTransaction(ev.EntityID)
		if err != nil {
			return err
		}
		if txn == nil {
			txn = &models.Transaction{ID: ev.EntityID, Type: models.EntryExpense}
		}
		txn.Version = ev.Version
		txn.IsDeleted = true
		return s.Local.PutTransaction(*txn)
	}

	var p TransactionPayload
	if err := decodePullPayload(ev.Payload, &p); err != nil {
		return err
	}
	return s.Local.PutTransaction(models.Transaction{
		ID:         ev.EntityID,
		CategoryID: p.CategoryID,
		Type:       p.Type,
		Amount:     p.Amount,
		Note:       p.Note,
		Date:       p.Date,
		Version:    ev.Version,
	})
}

func decodePullPayload(raw *string, dst any) error {
	if raw == nil {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal([]byte(*raw), dst); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

func (s *Session) bumpAccepted(m models.PendingMutation) error {
	version := m.BaseVersion + 1
	switch m.EntityType {
	case EntityCategory:
		cat, err := s.Local.GetCategory(m.EntityID)
		if err != nil || cat == nil {
			return err
		}
		cat.Version = version
		cat.IsDeleted = m.IsDelete()
		return s.Local.PutCategory(*cat)
	case EntityTransaction:
		txn, err := s.Local.GetTransaction(m.EntityID)
		if err != nil || txn == nil {
			return err
		}
		txn.Version = version
		txn.IsDeleted = m.IsDelete()
		return s.Local.PutTransaction(*txn)
	}
	return nil
}
