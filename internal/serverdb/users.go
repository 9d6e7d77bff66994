package serverdb

import (
	"database/sql"
	"fmt"
	"time"
)

// User is an account row on the authority side. There is no authentication in
// this protocol; the user id scopes entity rows and the change log.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// EnsureUser inserts a user row if one does not already exist. An empty
// email defaults to the user id so the unique email column never
// collides across users created without one.
func (db *ServerDB) EnsureUser(id, email, displayName string) error {
	if email == "" {
		email = id
	}
	_, err := db.conn.Exec(
		`INSERT OR IGNORE INTO users (id, email, display_name) VALUES (?, ?, ?)`,
		id, email, displayName,
	)
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", id, err)
	}
	return nil
}

// GetUser returns the user with the given id, or nil if not found.
func (db *ServerDB) GetUser(id string) (*User, error) {
	u := &User{}
	var displayName sql.NullString
	err := db.conn.QueryRow(
		`SELECT id, email, display_name, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &displayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	u.DisplayName = displayName.String
	return u, nil
}
