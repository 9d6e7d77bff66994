package syncharness

import (
	"testing"

	"github.com/marcus/fin/internal/models"
)

func TestTwoDevicesConverge(t *testing.T) {
	h := NewHarness(t, 2, "u1")

	catID := h.AddCategory("client-A", "Coffee", models.EntryExpense)
	h.Sync("client-A")
	h.Sync("client-B")

	cat := h.Category("client-B", catID)
	if cat == nil || cat.Name != "Coffee" || cat.Version != 1 {
		t.Fatalf("B's mirror = %+v", cat)
	}

	txnID := h.AddTransaction("client-B", catID, 3.5, "espresso")
	h.Sync("client-B")
	h.Sync("client-A")

	txn := h.Transaction("client-A", txnID)
	if txn == nil || txn.Amount != 3.5 || txn.CategoryID != catID {
		t.Fatalf("A's mirror = %+v", txn)
	}

	h.AssertConverged()
}

func TestConcurrentEditFirstPushWins(t *testing.T) {
	h := NewHarness(t, 2, "u1")

	catID := h.AddCategory("client-A", "Food", models.EntryExpense)
	h.Sync("client-A")
	h.Sync("client-B")

	// Both devices rename against version 1; A reaches the server first.
	h.RenameCategory("client-A", catID, "Groceries")
	h.RenameCategory("client-B", catID, "Restaurants")

	resA := h.Sync("client-A")
	if resA.Accepted != resA.Pushed {
		t.Fatalf("A's edit rejected: %+v", resA)
	}

	resB := h.Sync("client-B")
	if resB.Accepted == resB.Pushed {
		t.Fatalf("B's conflicting edit was not dropped: %+v", resB)
	}

	// B converged to A's name via the pulled winner record.
	cat := h.Category("client-B", catID)
	if cat.Name != "Groceries" || cat.Version != 2 {
		t.Fatalf("B after conflict = %+v", cat)
	}

	h.Sync("client-A")
	h.AssertConverged()
}

func TestDeleteSupersedesQueuedEdits(t *testing.T) {
	h := NewHarness(t, 2, "u1")

	catID := h.AddCategory("client-A", "Temp", models.EntryExpense)
	h.Sync("client-A")
	h.Sync("client-B")

	// A deletes and syncs; B queues a rename while offline.
	h.DeleteCategory("client-A", catID)
	h.Sync("client-A")
	h.RenameCategory("client-B", catID, "Renamed Offline")

	h.Sync("client-B")

	cat := h.Category("client-B", catID)
	if cat == nil || !cat.IsDeleted {
		t.Fatalf("B did not apply the delete: %+v", cat)
	}
	if n, _ := h.Clients["client-B"].Store.CountPending(); n != 0 {
		t.Fatalf("B still has %d queued edits for a deleted entity", n)
	}

	h.Sync("client-A")
	h.AssertConverged()
}

func TestRetryAfterLostResponseIsIdempotent(t *testing.T) {
	h := NewHarness(t, 2, "u1")

	// Model a client that pushed successfully but lost the response:
	// its outbox is intact, so the next round resends the same mutations.
	catID := h.AddCategory("client-A", "Coffee", models.EntryExpense)
	pending, err := h.Clients["client-A"].Store.PendingOrdered()
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %v (%v)", pending, err)
	}

	h.Sync("client-A")

	// Resend the identical mutation out of band.
	if err := h.Clients["client-A"].Store.Enqueue(pending[0]); err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	res := h.Sync("client-A")
	if res.Accepted != 1 {
		t.Fatalf("replayed mutation not acknowledged: %+v", res)
	}

	h.Sync("client-B")
	if got := h.Category("client-B", catID); got == nil || got.Version != 1 {
		t.Fatalf("category after retry = %+v", got)
	}

	h.AssertConverged()
}

func TestFreshDevicePullsSeededCategories(t *testing.T) {
	h := NewHarness(t, 1, "demo-user")

	n, err := h.Store.SeedDemoData("demo-user")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	res := h.Sync("client-A")
	if res.Pulled != n {
		t.Fatalf("pulled %d records, want %d", res.Pulled, n)
	}

	cats, err := h.Clients["client-A"].Store.ListCategories(false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != n {
		t.Fatalf("mirrored %d categories, want %d", len(cats), n)
	}
	for _, cat := range cats {
		if cat.Version != 1 {
			t.Fatalf("seeded category %s at version %d, want 1", cat.ID, cat.Version)
		}
	}
}

func TestAddThenDeleteBeforeSyncDrainsInOneRound(t *testing.T) {
	h := NewHarness(t, 2, "u1")

	// Create and delete while offline: the delete chains on the queued
	// create's version, so both land in a single round.
	catID := h.AddCategory("client-A", "Mistake", models.EntryExpense)
	h.DeleteCategory("client-A", catID)

	res := h.Sync("client-A")
	if res.Pushed != 2 || res.Accepted != 2 {
		t.Fatalf("round = %+v, want both mutations accepted", res)
	}
	if n, _ := h.Clients["client-A"].Store.CountPending(); n != 0 {
		t.Fatalf("outbox depth after round = %d", n)
	}
	cat := h.Category("client-A", catID)
	if !cat.IsDeleted || cat.Version != 2 {
		t.Fatalf("A's mirror = %+v, want deleted at version 2", cat)
	}

	// The other device sees both the create and the delete.
	h.Sync("client-B")
	if got := h.Category("client-B", catID); got == nil || !got.IsDeleted || got.Version != 2 {
		t.Fatalf("B's mirror = %+v", got)
	}

	h.AssertConverged()
}

func TestEditTwiceBeforeSyncAppliesBoth(t *testing.T) {
	h := NewHarness(t, 2, "u1")

	catID := h.AddCategory("client-A", "Fod", models.EntryExpense)
	h.RenameCategory("client-A", catID, "Food")

	res := h.Sync("client-A")
	if res.Pushed != 2 || res.Accepted != 2 {
		t.Fatalf("round = %+v, want both mutations accepted", res)
	}
	cat := h.Category("client-A", catID)
	if cat.Name != "Food" || cat.Version != 2 {
		t.Fatalf("A's mirror = %+v", cat)
	}

	h.Sync("client-B")
	if got := h.Category("client-B", catID); got == nil || got.Name != "Food" || got.Version != 2 {
		t.Fatalf("B's mirror = %+v", got)
	}

	h.AssertConverged()
}
