// Package sqlite implements the repository interfaces on an embedded SQLite
// database (modernc.org/sqlite, pure Go — no cgo, same binary everywhere).
//
// The admission invariant lives here: seats are claimed by a conditional
// INSERT that re-checks capacity against the live count, and the
// (event_id, folded_name) UNIQUE index backs the one-name-one-seat rule even
// if a second process shares the file.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath (":memory:" for tests) and runs
// migrations. The pool verifies the connection immediately so a bad path
// fails here, not on the first query.
//
// The pragmas ride on the DSN because database/sql pools connections: a
// one-shot Exec would configure a single connection, the DSN configures all
// of them. WAL lets reads proceed while a write is in flight; the busy
// timeout makes a writer that hits the lock wait its turn instead of
// returning SQLITE_BUSY, which the conditional admission insert relies on
// under contention.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Callers defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health endpoint.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			starts_at  DATETIME NOT NULL,
			ends_at    DATETIME NOT NULL,
			capacity   INTEGER NOT NULL CHECK (capacity > 0),
			location   TEXT NOT NULL DEFAULT '',
			price      TEXT NOT NULL DEFAULT '',
			host       TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'scheduled',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_events_status_starts ON events(status, starts_at);
	`)
	if err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}

	// folded_name is the canonical form of name; the UNIQUE index is the
	// store-level half of the no-duplicate-names invariant.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS registrations (
			id          TEXT PRIMARY KEY,
			event_id    TEXT NOT NULL REFERENCES events(id),
			name        TEXT NOT NULL,
			folded_name TEXT NOT NULL,
			user_id     INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (event_id, folded_name)
		);
		CREATE INDEX IF NOT EXISTS idx_registrations_event ON registrations(event_id);
	`)
	if err != nil {
		return fmt.Errorf("creating registrations table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS players (
			folded_name TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			rating      INTEGER NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating players table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS player_cards (
			folded_name TEXT PRIMARY KEY,
			player_name TEXT NOT NULL,
			file_id     TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating player_cards table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			username   TEXT NOT NULL DEFAULT '',
			first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_seen  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	return nil
}
