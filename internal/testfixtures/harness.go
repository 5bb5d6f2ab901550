// Package testfixtures provides an in-memory SQLite database whose schema
// mirrors the production MySQL schema. Repositories are written in
// portable SQL (?-placeholders, CURRENT_TIMESTAMP, times bound as Go
// values) so the same code runs against both engines.
package testfixtures

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE levels (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    level_no   INTEGER NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE slots (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    level_id           INTEGER NOT NULL,
    slot_label         TEXT NOT NULL,
    vehicle_category   TEXT,
    is_available       INTEGER NOT NULL DEFAULT 1,
    current_booking_id INTEGER,
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (level_id, slot_label)
);

CREATE TABLE vehicles (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    category       TEXT NOT NULL,
    vehicle_number TEXT NOT NULL UNIQUE,
    owner_name     TEXT NOT NULL,
    mobile         TEXT NOT NULL UNIQUE,
    slot_id        INTEGER,
    parking_charge INTEGER NOT NULL DEFAULT 0,
    payment_method TEXT NOT NULL DEFAULT 'Offline',
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE parking_sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    vehicle_id INTEGER NOT NULL,
    slot_id    INTEGER NOT NULL,
    entry_time DATETIME NOT NULL,
    exit_time  DATETIME,
    status     TEXT NOT NULL DEFAULT 'active',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    full_name     TEXT NOT NULL DEFAULT '',
    mobile_no     TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'EMPLOYEE',
    duty_status   TEXT NOT NULL DEFAULT 'OFF',
    shift_name    TEXT NOT NULL DEFAULT '',
    is_active     INTEGER NOT NULL DEFAULT 1,
    reset_code    TEXT,
    reset_expires DATETIME,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE refresh_tokens (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    INTEGER NOT NULL,
    token_hash TEXT NOT NULL UNIQUE,
    expires_at DATETIME NOT NULL,
    revoked_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE shifts (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    shift_name TEXT NOT NULL UNIQUE,
    start_time TEXT NOT NULL,
    end_time   TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// NewDB opens a fresh in-memory database with the full schema applied and
// closes it when the test ends. The pool is capped at one connection: an
// in-memory SQLite database exists per connection, and a single connection
// also serializes concurrent transactions the way the tests expect the
// database to.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
