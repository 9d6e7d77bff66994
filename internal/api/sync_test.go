package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/marcus/fin/internal/models"
	finsync "github.com/marcus/fin/internal/sync"
)

func catPush(mutationID, entityID string, base int64, name string) PushEventInput {
	payload, _ := json.Marshal(finsync.CategoryPayload{Name: name, Type: models.EntryExpense})
	return PushEventInput{
		MutationID:  mutationID,
		EntityType:  finsync.EntityCategory,
		EntityID:    entityID,
		Action:      finsync.ActionPut,
		BaseVersion: base,
		Payload:     payload,
	}
}

func txnPush(mutationID, entityID string, base int64, categoryID string, amount float64) PushEventInput {
	payload, _ := json.Marshal(finsync.TransactionPayload{
		CategoryID: categoryID,
		Type:       models.EntryExpense,
		Amount:     amount,
		Date:       1700000000000,
	})
	return PushEventInput{
		MutationID:  mutationID,
		EntityType:  finsync.EntityTransaction,
		EntityID:    entityID,
		Action:      finsync.ActionPut,
		BaseVersion: base,
		Payload:     payload,
	}
}

func TestSyncRoundTrip(t *testing.T) {
	h := newTestHarness(t)

	resp := h.Sync(SyncRequest{
		UserID:     "u1",
		LastCursor: 0,
		PushEvents: []PushEventInput{catPush("m1", "c1", 0, "Coffee")},
	})

	if len(resp.ProcessedMutationIDs) != 1 || resp.ProcessedMutationIDs[0] != "m1" {
		t.Fatalf("processed = %v, want [m1]", resp.ProcessedMutationIDs)
	}
	if resp.NewCursor == 0 {
		t.Fatal("new_cursor not advanced")
	}
	// Self-exclusion: the pusher does not get its own mutation back.
	if len(resp.PullEvents) != 0 {
		t.Fatalf("pull_events = %v, want empty", resp.PullEvents)
	}

	// A second device starting from cursor 0 pulls the record.
	other := h.Sync(SyncRequest{UserID: "u1", LastCursor: 0})
	if len(other.PullEvents) != 1 {
		t.Fatalf("second device pulled %d records, want 1", len(other.PullEvents))
	}
	ev := other.PullEvents[0]
	if ev.EntityID != "c1" || ev.Version != 1 || ev.Action != finsync.ActionPut {
		t.Fatalf("pulled event = %+v", ev)
	}
	if ev.Payload == nil || !strings.Contains(*ev.Payload, "Coffee") {
		t.Fatalf("pulled payload = %v", ev.Payload)
	}
	if other.NewCursor != resp.NewCursor {
		t.Fatalf("cursor mismatch: %d vs %d", other.NewCursor, resp.NewCursor)
	}
}

func TestSyncEmptyRoundKeepsCursor(t *testing.T) {
	h := newTestHarness(t)

	resp := h.Sync(SyncRequest{UserID: "u1", LastCursor: 0})
	if resp.NewCursor != 0 {
		t.Fatalf("new_cursor = %d, want 0 for empty log", resp.NewCursor)
	}
	if resp.ProcessedMutationIDs == nil || len(resp.ProcessedMutationIDs) != 0 {
		t.Fatalf("processed = %#v, want []", resp.ProcessedMutationIDs)
	}
	if len(resp.PullEvents) != 0 {
		t.Fatalf("pull_events = %v, want empty", resp.PullEvents)
	}
}

func TestSyncCursorNeverMovesBackwards(t *testing.T) {
	h := newTestHarness(t)

	// A cursor ahead of the log is returned unchanged.
	resp := h.Sync(SyncRequest{UserID: "u1", LastCursor: 42})
	if resp.NewCursor != 42 {
		t.Fatalf("new_cursor = %d, want 42", resp.NewCursor)
	}
}

func TestSyncRejectsMalformedRequests(t *testing.T) {
	h := newTestHarness(t)

	resp := h.Do(http.MethodPost, "/sync", nil)
	h.AssertErrorCode(resp, http.StatusBadRequest, ErrCodeBadRequest)

	resp = h.Do(http.MethodPost, "/sync", SyncRequest{LastCursor: 0})
	h.AssertErrorCode(resp, http.StatusBadRequest, ErrCodeBadRequest)

	// Unsupported enum in a push event rejects the request.
	resp = h.Do(http.MethodPost, "/sync", SyncRequest{
		UserID: "u1",
		PushEvents: []PushEventInput{{
			MutationID: "m1",
			EntityType: "USR",
			EntityID:   "c1",
			Action:     finsync.ActionPut,
		}},
	})
	h.AssertErrorCode(resp, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestSyncMethodNotAllowed(t *testing.T) {
	h := newTestHarness(t)

	resp := h.Do(http.MethodGet, "/sync", nil)
	h.AssertStatus(resp, http.StatusMethodNotAllowed)
}

func TestSyncBatchOrderingCategoriesFirst(t *testing.T) {
	h := newTestHarness(t)

	// Transaction listed before the category it references; the server
	// reorders so the category lands first.
	resp := h.Sync(SyncRequest{
		UserID: "u1",
		PushEvents: []PushEventInput{
			txnPush("m-txn", "t1", 0, "c1", 12.5),
			catPush("m-cat", "c1", 0, "Lunch"),
		},
	})
	if len(resp.ProcessedMutationIDs) != 2 {
		t.Fatalf("processed = %v, want both", resp.ProcessedMutationIDs)
	}

	// Pull order on a fresh device reflects log order: category first.
	fresh := h.Sync(SyncRequest{UserID: "u1", LastCursor: 0})
	if len(fresh.PullEvents) != 2 {
		t.Fatalf("pulled %d records, want 2", len(fresh.PullEvents))
	}
	if fresh.PullEvents[0].EntityType != finsync.EntityCategory {
		t.Fatalf("first pulled record is %s, want CAT", fresh.PullEvents[0].EntityType)
	}
	if fresh.PullEvents[0].ID >= fresh.PullEvents[1].ID {
		t.Fatal("pull events not in ascending cursor order")
	}
}

func TestSyncStaleConflictOmittedFromProcessed(t *testing.T) {
	h := newTestHarness(t)

	h.Sync(SyncRequest{UserID: "u1", PushEvents: []PushEventInput{catPush("m1", "c1", 0, "Coffee")}})
	winner := h.Sync(SyncRequest{UserID: "u1", PushEvents: []PushEventInput{catPush("m2", "c1", 1, "Coffee v2")}})

	// Device B never saw version 2 and pushes against version 1.
	stale := h.Sync(SyncRequest{
		UserID:     "u1",
		LastCursor: 1,
		PushEvents: []PushEventInput{catPush("m3", "c1", 1, "Loser")},
	})
	for _, id := range stale.ProcessedMutationIDs {
		if id == "m3" {
			t.Fatal("stale mutation reported as processed")
		}
	}
	// The winning state arrives via pull instead.
	found := false
	for _, ev := range stale.PullEvents {
		if ev.MutationID == "m2" && ev.Version == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("winner record not pulled: %+v", stale.PullEvents)
	}
	if stale.NewCursor < winner.NewCursor {
		t.Fatalf("cursor %d behind winner %d", stale.NewCursor, winner.NewCursor)
	}
}

func TestSyncIdempotentRetry(t *testing.T) {
	h := newTestHarness(t)

	req := SyncRequest{UserID: "u1", PushEvents: []PushEventInput{catPush("m1", "c1", 0, "Coffee")}}
	first := h.Sync(req)
	second := h.Sync(req)

	if len(second.ProcessedMutationIDs) != 1 || second.ProcessedMutationIDs[0] != "m1" {
		t.Fatalf("retry processed = %v", second.ProcessedMutationIDs)
	}
	if second.NewCursor != first.NewCursor {
		t.Fatalf("retry advanced cursor: %d vs %d", second.NewCursor, first.NewCursor)
	}
	// No duplicate log record for the second device to pull.
	fresh := h.Sync(SyncRequest{UserID: "u1", LastCursor: 0})
	if len(fresh.PullEvents) != 1 {
		t.Fatalf("pulled %d records after retry, want 1", len(fresh.PullEvents))
	}
}

func TestSyncUsersIsolated(t *testing.T) {
	h := newTestHarness(t)

	h.Sync(SyncRequest{UserID: "u1", PushEvents: []PushEventInput{catPush("m1", "c1", 0, "Coffee")}})

	other := h.Sync(SyncRequest{UserID: "u2", LastCursor: 0})
	if len(other.PullEvents) != 0 {
		t.Fatalf("user u2 pulled u1's records: %v", other.PullEvents)
	}
}

func TestSyncRateLimited(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config) { cfg.RateLimitSync = 2 })

	h.Sync(SyncRequest{UserID: "u1"})
	h.Sync(SyncRequest{UserID: "u1"})

	resp := h.Do(http.MethodPost, "/sync", SyncRequest{UserID: "u1"})
	h.AssertErrorCode(resp, http.StatusTooManyRequests, ErrCodeRateLimited)

	// Other users are unaffected.
	h.Sync(SyncRequest{UserID: "u2"})
}

func TestSyncBatchSizeCapped(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config) { cfg.MaxPushBatch = 1 })

	resp := h.Do(http.MethodPost, "/sync", SyncRequest{
		UserID:     "u1",
		PushEvents: []PushEventInput{catPush("m1", "c1", 0, "A"), catPush("m2", "c2", 0, "B")},
	})
	h.AssertErrorCode(resp, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestHealthz(t *testing.T) {
	h := newTestHarness(t)

	resp := h.Do(http.MethodGet, "/healthz", nil)
	h.AssertStatus(resp, http.StatusOK)
}

func TestMetricz(t *testing.T) {
	h := newTestHarness(t)

	h.Sync(SyncRequest{UserID: "u1", PushEvents: []PushEventInput{catPush("m1", "c1", 0, "Coffee")}})

	resp := h.Do(http.MethodGet, "/metricz", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metricz status = %d", resp.StatusCode)
	}
	var snap MetricsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snap.SyncRequests < 1 || snap.PushApplied < 1 {
		t.Fatalf("metrics snapshot = %+v", snap)
	}
}
