// Package authdb is the thin SQL-backed credential store package
// server consumes only through the Verifier interface: it never needs
// more than verify(user, pass) -> bool, so the schema and query
// details live entirely here.
package authdb

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Verifier is the sole contract the session/handler code depends on.
type Verifier interface {
	Verify(user, pass string) bool
}

// DB is a SQLite-backed Verifier. Passwords are stored and compared as
// plaintext; encrypted at-rest credentials are out of scope.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) a credentials database at path
// and ensures its schema exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("authdb: open %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("authdb: migrate: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Verify reports whether user/pass is a valid credential pair. Any
// query error is treated as a failed verification rather than
// propagated, since a handler's only decision point is "stay in
// LoginRequired or move to Active".
func (d *DB) Verify(user, pass string) bool {
	if user == "" {
		return false
	}
	var stored string
	row := d.db.QueryRow(`SELECT password FROM users WHERE username = ?`, user)
	if err := row.Scan(&stored); err != nil {
		return false
	}
	return stored == pass
}

// AddUser inserts or replaces a user's credentials. Used by setup
// tooling and tests; the core server never calls this.
func (d *DB) AddUser(user, pass string) error {
	_, err := d.db.Exec(`INSERT INTO users(username, password) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET password = excluded.password`, user, pass)
	return err
}
