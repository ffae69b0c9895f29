// Package cache mirrors the last successfully loaded contact list per user in
// a local SQLite database, for offline viewing. It is never a source of truth.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"contactdesk/internal/contacts"
	"contactdesk/internal/logging"
)

// ErrNoSnapshot is returned when a user has no stored snapshot.
var ErrNoSnapshot = errors.New("no offline snapshot")

// Snapshot is a stored contact list.
type Snapshot struct {
	Username string
	SavedAt  time.Time
	Contacts []contacts.Contact
}

// Store manages the snapshot database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open creates or opens the snapshot database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		username TEXT PRIMARY KEY,
		saved_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_contacts (
		username TEXT NOT NULL,
		position INTEGER NOT NULL,
		contact_id TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		owner_username TEXT NOT NULL,
		PRIMARY KEY (username, position)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the snapshot for username with list.
func (s *Store) Save(ctx context.Context, username string, list []contacts.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_contacts WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_contacts
		(username, position, contact_id, first_name, last_name, email, phone, owner_username)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range list {
		if _, err := stmt.ExecContext(ctx, username, i, string(c.ID), c.FirstName, c.LastName, c.Email, c.Phone, c.OwnerUsername); err != nil {
			return fmt.Errorf("failed to store contact %s: %w", c.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots (username, saved_at) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET saved_at = excluded.saved_at`, username, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to stamp snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	logging.Cache("saved snapshot for %s: %d contacts", username, len(list))
	return nil
}

// Load returns the last snapshot for username in the order it was saved.
func (s *Store) Load(ctx context.Context, username string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var savedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT saved_at FROM snapshots WHERE username = ?`, username).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT contact_id, first_name, last_name, email, phone, owner_username
		FROM snapshot_contacts WHERE username = ? ORDER BY position`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{Username: username, SavedAt: time.UnixMilli(savedAt), Contacts: []contacts.Contact{}}
	for rows.Next() {
		var c contacts.Contact
		var id string
		if err := rows.Scan(&id, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.OwnerUsername); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		c.ID = contacts.ID(id)
		snap.Contacts = append(snap.Contacts, c)
	}
	return snap, rows.Err()
}

// Forget drops the snapshot for username.
func (s *Store) Forget(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshot_contacts WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to forget snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to forget snapshot: %w", err)
	}
	logging.Cache("forgot snapshot for %s", username)
	return nil
}
