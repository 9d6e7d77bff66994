package localdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/fin/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func pending(entityID string, createdAt time.Time, payload []byte) models.PendingMutation {
	return models.PendingMutation{
		MutationID: "m-" + entityID + "-" + createdAt.Format("150405.000000000"),
		EntityType: "CAT",
		EntityID:   entityID,
		Payload:    payload,
		CreatedAt:  createdAt,
	}
}

func TestCategoryRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if got, err := store.GetCategory("c1"); err != nil || got != nil {
		t.Fatalf("absent category: got %v, err %v", got, err)
	}

	cat := models.Category{ID: "c1", Name: "Coffee", Type: models.EntryExpense, Version: 3}
	if err := store.PutCategory(cat); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.GetCategory("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != cat {
		t.Fatalf("got %+v, want %+v", *got, cat)
	}
}

func TestListCategoriesSkipsDeleted(t *testing.T) {
	store := openTestStore(t)

	store.PutCategory(models.Category{ID: "c1", Name: "Coffee", Type: models.EntryExpense})
	store.PutCategory(models.Category{ID: "c2", Name: "Rent", Type: models.EntryExpense, IsDeleted: true})

	visible, err := store.ListCategories(false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != "c1" {
		t.Fatalf("visible = %+v", visible)
	}

	all, err := store.ListCategories(true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %+v", all)
	}
}

func TestListTransactionsNewestFirst(t *testing.T) {
	store := openTestStore(t)

	store.PutTransaction(models.Transaction{ID: "t1", CategoryID: "c1", Type: models.EntryExpense, Amount: 1, Date: 100})
	store.PutTransaction(models.Transaction{ID: "t2", CategoryID: "c1", Type: models.EntryExpense, Amount: 2, Date: 300})
	store.PutTransaction(models.Transaction{ID: "t3", CategoryID: "c1", Type: models.EntryExpense, Amount: 3, Date: 200})

	txns, err := store.ListTransactions(false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var order []string
	for _, txn := range txns {
		order = append(order, txn.ID)
	}
	want := []string{"t2", "t3", "t1"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestOutboxDrainOrder(t *testing.T) {
	store := openTestStore(t)

	base := time.Now()
	// Enqueued out of wall-clock order; drain follows created_at.
	second := pending("c2", base.Add(time.Second), []byte(`{"n":2}`))
	first := pending("c1", base, []byte(`{"n":1}`))
	if err := store.Enqueue(second); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := store.Enqueue(first); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := store.PendingOrdered()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("pending = %d entries, want 2", len(got))
	}
	if got[0].MutationID != first.MutationID || got[1].MutationID != second.MutationID {
		t.Fatalf("drain order = %s,%s", got[0].MutationID, got[1].MutationID)
	}
}

func TestOutboxSameTimestampKeepsEnqueueOrder(t *testing.T) {
	store := openTestStore(t)

	at := time.Now()
	a := pending("c1", at, []byte(`{}`))
	a.MutationID = "m-a"
	b := pending("c1", at, []byte(`{}`))
	b.MutationID = "m-b"
	store.Enqueue(a)
	store.Enqueue(b)

	got, err := store.PendingOrdered()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if got[0].MutationID != "m-a" || got[1].MutationID != "m-b" {
		t.Fatalf("tie order = %s,%s", got[0].MutationID, got[1].MutationID)
	}
}

func TestRemoveByMutationIDs(t *testing.T) {
	store := openTestStore(t)

	a := pending("c1", time.Now(), []byte(`{}`))
	b := pending("c2", time.Now().Add(time.Millisecond), []byte(`{}`))
	store.Enqueue(a)
	store.Enqueue(b)

	if err := store.RemoveByMutationIDs([]string{a.MutationID, "m-unknown"}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	got, _ := store.PendingOrdered()
	if len(got) != 1 || got[0].MutationID != b.MutationID {
		t.Fatalf("remaining = %+v", got)
	}
	if n, _ := store.CountPending(); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestRemoveByEntityDropsAllIndexEntries(t *testing.T) {
	store := openTestStore(t)

	now := time.Now()
	a := pending("c1", now, []byte(`{}`))
	b := pending("c1", now.Add(time.Millisecond), nil) // queued delete
	c := pending("c2", now.Add(2*time.Millisecond), []byte(`{}`))
	store.Enqueue(a)
	store.Enqueue(b)
	store.Enqueue(c)

	if err := store.RemoveByEntity("c1"); err != nil {
		t.Fatalf("remove by entity: %v", err)
	}

	got, _ := store.PendingOrdered()
	if len(got) != 1 || got[0].EntityID != "c2" {
		t.Fatalf("remaining = %+v", got)
	}
	forEntity, err := store.PendingForEntity("c1")
	if err != nil {
		t.Fatalf("pending for entity: %v", err)
	}
	if len(forEntity) != 0 {
		t.Fatalf("entity index not cleaned: %+v", forEntity)
	}
}

func TestPendingForEntityPrefixIsolation(t *testing.T) {
	store := openTestStore(t)

	// "c1" must not match entries for "c10".
	store.Enqueue(pending("c1", time.Now(), []byte(`{}`)))
	store.Enqueue(pending("c10", time.Now().Add(time.Millisecond), []byte(`{}`)))

	got, err := store.PendingForEntity("c1")
	if err != nil {
		t.Fatalf("pending for entity: %v", err)
	}
	if len(got) != 1 || got[0].EntityID != "c1" {
		t.Fatalf("got %+v, want only c1", got)
	}
}

func TestLastCursorPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if cursor, _ := store.LastCursor(); cursor != 0 {
		t.Fatalf("fresh cursor = %d, want 0", cursor)
	}
	if err := store.SetLastCursor(77); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if cursor, _ := reopened.LastCursor(); cursor != 77 {
		t.Fatalf("cursor after reopen = %d, want 77", cursor)
	}
}
