// Package syncharness spins up a real sync server and several simulated
// devices, each with its own local database and session, to exercise
// full push/pull rounds end to end.
package syncharness

import (
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/fin/internal/api"
	"github.com/marcus/fin/internal/localdb"
	"github.com/marcus/fin/internal/models"
	"github.com/marcus/fin/internal/serverdb"
	finsync "github.com/marcus/fin/internal/sync"
	"github.com/marcus/fin/internal/syncclient"
)

// SimulatedClient is one device: a local store plus a session bound to
// the shared test server.
type SimulatedClient struct {
	ID      string
	Store   *localdb.Store
	Session *finsync.Session
}

// Harness orchestrates multi-device sync testing against one user.
type Harness struct {
	t       *testing.T
	UserID  string
	Store   *serverdb.ServerDB
	Clients map[string]*SimulatedClient
	httpSrv *httptest.Server
}

// NewHarness starts a server and numClients devices for userID.
func NewHarness(t *testing.T, numClients int, userID string) *Harness {
	t.Helper()

	tmpDir := t.TempDir()
	store, err := serverdb.Open(filepath.Join(tmpDir, "fin.db"))
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}

	cfg := api.Config{
		ListenAddr:      ":0",
		DBPath:          filepath.Join(tmpDir, "fin.db"),
		ShutdownTimeout: time.Second,
		RateLimitSync:   100000,
		MaxPushBatch:    500,
	}
	srv, err := api.NewServer(cfg, store)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	httpSrv := httptest.NewServer(srv.Handler())

	h := &Harness{
		t:       t,
		UserID:  userID,
		Store:   store,
		Clients: make(map[string]*SimulatedClient),
		httpSrv: httpSrv,
	}
	t.Cleanup(func() {
		httpSrv.Close()
		store.Close()
	})

	for i := 0; i < numClients; i++ {
		id := "client-" + string(rune('A'+i))
		local, err := localdb.Open(filepath.Join(tmpDir, id+".db"))
		if err != nil {
			t.Fatalf("open %s store: %v", id, err)
		}
		t.Cleanup(func() { local.Close() })

		client := syncclient.New(httpSrv.URL)
		client.MaxRetries = 0
		h.Clients[id] = &SimulatedClient{
			ID:      id,
			Store:   local,
			Session: finsync.NewSession(local, client, userID),
		}
	}
	return h
}

func (h *Harness) client(id string) *SimulatedClient {
	c, ok := h.Clients[id]
	if !ok {
		h.t.Fatalf("unknown client: %s", id)
	}
	return c
}

// Sync runs one round for the named client.
func (h *Harness) Sync(clientID string) *finsync.Result {
	h.t.Helper()
	res, err := h.client(clientID).Session.Run()
	if err != nil {
		h.t.Fatalf("%s sync: %v", clientID, err)
	}
	return res
}

// AddCategory stages a category on a client and returns its id.
func (h *Harness) AddCategory(clientID, name string, entryType models.EntryType) string {
	h.t.Helper()
	c := h.client(clientID)
	id := fmt.Sprintf("cat-%s-%s", clientID, name)
	if _, err := finsync.StageCategoryPut(c.Store, h.UserID, models.Category{ID: id, Name: name, Type: entryType}); err != nil {
		h.t.Fatalf("%s add category: %v", clientID, err)
	}
	return id
}

// RenameCategory stages an update keeping the mirror's current type.
func (h *Harness) RenameCategory(clientID, categoryID, name string) {
	h.t.Helper()
	c := h.client(clientID)
	cat, err := c.Store.GetCategory(categoryID)
	if err != nil || cat == nil {
		h.t.Fatalf("%s rename: category %s not mirrored (%v)", clientID, categoryID, err)
	}
	cat.Name = name
	if _, err := finsync.StageCategoryPut(c.Store, h.UserID, *cat); err != nil {
		h.t.Fatalf("%s rename category: %v", clientID, err)
	}
}

// DeleteCategory stages a deletion on a client.
func (h *Harness) DeleteCategory(clientID, categoryID string) {
	h.t.Helper()
	if _, err := finsync.StageCategoryDelete(h.client(clientID).Store, categoryID); err != nil {
		h.t.Fatalf("%s delete category: %v", clientID, err)
	}
}

// AddTransaction stages a transaction against an already-mirrored category.
func (h *Harness) AddTransaction(clientID, categoryID string, amount float64, note string) string {
	h.t.Helper()
	c := h.client(clientID)
	cat, err := c.Store.GetCategory(categoryID)
	if err != nil || cat == nil {
		h.t.Fatalf("%s add txn: category %s not mirrored (%v)", clientID, categoryID, err)
	}
	id := fmt.Sprintf("txn-%s-%s", clientID, note)
	txn := models.Transaction{
		ID:         id,
		CategoryID: categoryID,
		Type:       cat.Type,
		Amount:     amount,
		Note:       note,
		Date:       time.Now().UnixMilli(),
	}
	if _, err := finsync.StageTransactionPut(c.Store, h.UserID, txn); err != nil {
		h.t.Fatalf("%s add transaction: %v", clientID, err)
	}
	return id
}

// Category reads a client's mirror, nil when absent.
func (h *Harness) Category(clientID, categoryID string) *models.Category {
	h.t.Helper()
	cat, err := h.client(clientID).Store.GetCategory(categoryID)
	if err != nil {
		h.t.Fatalf("%s read category: %v", clientID, err)
	}
	return cat
}

// Transaction reads a client's mirror, nil when absent.
func (h *Harness) Transaction(clientID, txnID string) *models.Transaction {
	h.t.Helper()
	txn, err := h.client(clientID).Store.GetTransaction(txnID)
	if err != nil {
		h.t.Fatalf("%s read transaction: %v", clientID, err)
	}
	return txn
}

// AssertConverged checks that every client mirrors the same entity state
// and has an empty outbox.
func (h *Harness) AssertConverged() {
	h.t.Helper()

	type state struct {
		clientID string
		cats     map[string]models.Category
		txns     map[string]models.Transaction
	}
	var states []state
	for id, c := range h.Clients {
		if n, err := c.Store.CountPending(); err != nil || n != 0 {
			h.t.Fatalf("%s outbox not drained: %d (%v)", id, n, err)
		}
		cats, err := c.Store.ListCategories(true)
		if err != nil {
			h.t.Fatalf("%s list categories: %v", id, err)
		}
		txns, err := c.Store.ListTransactions(true)
		if err != nil {
			h.t.Fatalf("%s list transactions: %v", id, err)
		}
		s := state{clientID: id, cats: map[string]models.Category{}, txns: map[string]models.Transaction{}}
		for _, cat := range cats {
			s.cats[cat.ID] = cat
		}
		for _, txn := range txns {
			s.txns[txn.ID] = txn
		}
		states = append(states, s)
	}

	first := states[0]
	for _, other := range states[1:] {
		if len(other.cats) != len(first.cats) || len(other.txns) != len(first.txns) {
			h.t.Fatalf("entity counts differ: %s has %d/%d, %s has %d/%d",
				first.clientID, len(first.cats), len(first.txns),
				other.clientID, len(other.cats), len(other.txns))
		}
		for id, cat := range first.cats {
			if other.cats[id] != cat {
				h.t.Fatalf("category %s differs: %s=%+v %s=%+v", id, first.clientID, cat, other.clientID, other.cats[id])
			}
		}
		for id, txn := range first.txns {
			if other.txns[id] != txn {
				h.t.Fatalf("transaction %s differs: %s=%+v %s=%+v", id, first.clientID, txn, other.clientID, other.txns[id])
			}
		}
	}
}
