package cmd

import (
	"fmt"

	"github.com/marcus/fin/internal/localdb"
	"github.com/marcus/fin/internal/syncconfig"
)

// openLocal opens the configured user's local database. Callers must
// Close the returned store.
func openLocal() (*localdb.Store, string, error) {
	userID := syncconfig.GetUserID()
	if userID == "" {
		return nil, "", fmt.Errorf("no user configured; run 'fin init --user <id>' first")
	}
	path, err := syncconfig.LocalDBPath(userID)
	if err != nil {
		return nil, "", err
	}
	store, err := localdb.Open(path)
	if err != nil {
		return nil, "", err
	}
	return store, userID, nil
}
