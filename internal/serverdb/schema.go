package serverdb

// ServerSchemaVersion is the current server database schema version.
const ServerSchemaVersion = 1

const serverSchema = `
-- Users table
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    display_name TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Current-state category rows. Rows are never removed: deletion flips
-- is_deleted and bumps version so later conflict checks keep working.
CREATE TABLE IF NOT EXISTS categories (
    id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    version INTEGER NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (id, user_id)
);

-- Current-state transaction rows. date is unix milliseconds.
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    category_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount REAL NOT NULL,
    note TEXT,
    date BIGINT NOT NULL,
    version INTEGER NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (id, user_id)
);

-- Append-only per-user change log. The autoincrement id is the sync cursor;
-- mutation_id UNIQUE enforces idempotency at the storage layer.
CREATE TABLE IF NOT EXISTS sync_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    mutation_id TEXT UNIQUE NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    action TEXT NOT NULL,
    version INTEGER NOT NULL,
    payload TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Schema info table
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_sync_events_user ON sync_events(user_id, id);
CREATE INDEX IF NOT EXISTS idx_sync_events_entity ON sync_events(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, date);
`

// Schema returns the base schema DDL. Tests use it to build throwaway
// in-memory databases without going through Open.
func Schema() string {
	return serverSchema
}

// Migration defines a server database migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all server database migrations in order.
// Version 1 is the initial schema - no migration needed.
var Migrations = []Migration{}
