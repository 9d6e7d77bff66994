package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	finsync "github.com/marcus/fin/internal/sync"
)

// SyncRequest is the JSON body for POST /sync.
type SyncRequest struct {
	UserID     string           `json:"user_id"`
	LastCursor int64            `json:"last_cursor"`
	PushEvents []PushEventInput `json:"push_events"`
}

// PushEventInput is a single client mutation in a sync request.
type PushEventInput struct {
	MutationID  string          `json:"mutation_id"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Action      string          `json:"action"`
	BaseVersion int64           `json:"base_version"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// SyncResponse is the JSON response for a sync round.
type SyncResponse struct {
	NewCursor            int64       `json:"new_cursor"`
	ProcessedMutationIDs []string    `json:"processed_mutation_ids"`
	PullEvents           []PullEvent `json:"pull_events"`
}

// PullEvent is a single change-log record delivered to the client.
// Payload is the serialized entity payload, null for deletions.
type PullEvent struct {
	ID         int64   `json:"id"`
	MutationID string  `json:"mutation_id"`
	EntityType string  `json:"entity_type"`
	EntityID   string  `json:"entity_id"`
	Action     string  `json:"action"`
	Version    int64   `json:"version"`
	Payload    *string `json:"payload"`
}

// handleSync handles POST /sync: applies the pushed mutations and answers
// with everything the caller has not yet seen.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordSyncRequest()

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}
	if len(req.PushEvents) > s.config.MaxPushBatch {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("batch size %d exceeds max %d", len(req.PushEvents), s.config.MaxPushBatch))
		return
	}

	if !s.rateLimiter.Allow("user:"+userID, s.config.RateLimitSync) {
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
		return
	}

	events := make([]finsync.Event, len(req.PushEvents))
	for i, ev := range req.PushEvents {
		events[i] = finsync.Event{
			MutationID:  ev.MutationID,
			EntityType:  ev.EntityType,
			EntityID:    ev.EntityID,
			Action:      ev.Action,
			BaseVersion: ev.BaseVersion,
			Payload:     ev.Payload,
		}
	}

	// Serialize the whole round per user. Category mutations are applied
	// before transaction mutations so same-batch references resolve.
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	db := s.store.Conn()
	accepted := make([]string, 0, len(events))
	var applied, dropped, replayed int64

	for _, ev := range finsync.SortPushEvents(events) {
		tx, err := db.Begin()
		if err != nil {
			logFor(r.Context()).Error("begin tx", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "database error")
			return
		}

		disp, err := finsync.ApplyPushEvent(tx, userID, ev)
		if err != nil {
			tx.Rollback()
			var verr *finsync.ValidationError
			if errors.As(err, &verr) {
				// Events committed earlier in this batch stay committed.
				writeError(w, http.StatusBadRequest, ErrCodeBadRequest, verr.Reason)
				return
			}
			logFor(r.Context()).Error("apply push event", "mutation", ev.MutationID, "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to apply mutation")
			return
		}

		if err := tx.Commit(); err != nil {
			logFor(r.Context()).Error("commit push event", "mutation", ev.MutationID, "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to commit")
			return
		}

		switch disp {
		case finsync.DispositionApplied:
			applied++
		case finsync.DispositionDuplicate:
			replayed++
		case finsync.DispositionStale:
			dropped++
		}
		if disp.Accepted() {
			accepted = append(accepted, ev.MutationID)
		}
	}

	s.metrics.RecordPushApplied(applied)
	s.metrics.RecordPushDropped(dropped)
	s.metrics.RecordPushReplayed(replayed)

	tx, err := db.Begin()
	if err != nil {
		logFor(r.Context()).Error("begin read tx", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "database error")
		return
	}
	defer tx.Rollback()

	newCursor, err := finsync.MaxCursor(tx, userID)
	if err != nil {
		logFor(r.Context()).Error("max cursor", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read cursor")
		return
	}
	// The returned cursor never moves backwards, even for a caller that
	// submitted a cursor ahead of the log.
	if newCursor < req.LastCursor {
		newCursor = req.LastCursor
	}

	// The client already knows about its own just-accepted mutations; do not
	// echo them back as pulls.
	records, err := finsync.RecordsSince(tx, userID, req.LastCursor, accepted)
	if err != nil {
		logFor(r.Context()).Error("read change log", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read change log")
		return
	}
	tx.Rollback() // read-only, just release

	s.metrics.RecordPullRecords(int64(len(records)))

	resp := SyncResponse{
		NewCursor:            newCursor,
		ProcessedMutationIDs: accepted,
		PullEvents:           make([]PullEvent, len(records)),
	}
	for i, rec := range records {
		resp.PullEvents[i] = PullEvent{
			ID:         rec.Cursor,
			MutationID: rec.MutationID,
			EntityType: rec.EntityType,
			EntityID:   rec.EntityID,
			Action:     rec.Action,
			Version:    rec.Version,
			Payload:    rec.Payload,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
