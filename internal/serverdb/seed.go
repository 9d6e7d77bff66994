package serverdb

import (
	"encoding/json"
	"fmt"

	"github.com/marcus/fin/internal/models"
	finsync "github.com/marcus/fin/internal/sync"
)

var defaultExpenseCategories = []string{
	"Breakfast", "Lunch", "Dinner", "Drinks", "Snacks",
	"Transport", "Shopping", "Entertainment", "Household", "Rent",
}

var defaultIncomeCategories = []string{"Salary", "Bonus", "Interest"}

// SeedDemoData creates the user and a default category set at version 1, each
// with a synthetic change-log record so a fresh client pulls the categories on
// its first sync. Re-running is a no-op thanks to INSERT OR IGNORE and the
// mutation_id uniqueness on the log.
func (db *ServerDB) SeedDemoData(userID string) (int, error) {
	if err := db.EnsureUser(userID, userID, "Demo User"); err != nil {
		return 0, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	seeded := 0
	seed := func(name string, entryType models.EntryType) error {
		id := fmt.Sprintf("cat-%s-%s", map[models.EntryType]string{
			models.EntryExpense: "expense",
			models.EntryIncome:  "income",
		}[entryType], slugify(name))

		res, err := tx.Exec(
			`INSERT OR IGNORE INTO categories (id, user_id, name, type, version, is_deleted) VALUES (?, ?, ?, ?, 1, 0)`,
			id, userID, name, entryType,
		)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		payload, err := json.Marshal(finsync.CategoryPayload{
			ID:     id,
			UserID: userID,
			Name:   name,
			Type:   entryType,
		})
		if err != nil {
			return fmt.Errorf("marshal seed payload: %w", err)
		}
		_, err = tx.Exec(
			`INSERT OR IGNORE INTO sync_events (user_id, mutation_id, entity_type, entity_id, action, version, payload)
			 VALUES (?, ?, ?, ?, ?, 1, ?)`,
			userID, "init-cat-"+id, finsync.EntityCategory, id, finsync.ActionPut, string(payload),
		)
		if err != nil {
			return fmt.Errorf("seed change log %s: %w", name, err)
		}
		seeded++
		return nil
	}

	for _, name := range defaultExpenseCategories {
		if err := seed(name, models.EntryExpense); err != nil {
			return seeded, err
		}
	}
	for _, name := range defaultIncomeCategories {
		if err := seed(name, models.EntryIncome); err != nil {
			return seeded, err
		}
	}

	if err := tx.Commit(); err != nil {
		return seeded, fmt.Errorf("commit seed tx: %w", err)
	}
	return seeded, nil
}

func slugify(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '-')
		}
	}
	return string(out)
}
