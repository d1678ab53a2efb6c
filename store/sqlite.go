package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
// It uses the pure Go modernc.org/sqlite driver.
type SQLiteStore struct {
	sqlStore
}

// NewSQLite creates a new SQLite session record store.
// The database file is created if it doesn't exist.
//
// Transactions are opened with BEGIN IMMEDIATE so that two reconciliations
// of the same key cannot both read "absent" and then both insert.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	// The path becomes a URI filename; '?' and '#' would end it early.
	if strings.ContainsAny(dbPath, "?#") {
		return nil, fmt.Errorf("sqlite: %w: %q", ErrInvalidPath, dbPath)
	}

	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "foreign_keys(1)")

	db, err := sql.Open("sqlite", "file:"+dbPath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	return NewSQLiteFromDB(db)
}

// NewSQLiteFromDB wraps an already opened SQLite database and creates the
// session_state table if needed.
func NewSQLiteFromDB(db *sql.DB) (*SQLiteStore, error) {
	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{sqlStore{
		db:      db,
		dialect: dialect{name: "sqlite"},
	}}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_state (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		user             TEXT NOT NULL,
		session_id       TEXT NOT NULL,
		timestamp        DATETIME NOT NULL,
		action           TEXT NOT NULL,
		service_provider TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_state_key
		ON session_state (user, service_provider, timestamp);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: failed to create schema: %w", err)
	}
	return nil
}
