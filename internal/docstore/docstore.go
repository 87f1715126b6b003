// Package docstore persists JSON documents keyed by id on SQLite.
//
// It is the single persistence surface for the agent: scheduled tasks,
// conversation history, and user profiles are all documents. Callers that
// mutate shared documents should reload immediately before saving to keep
// the lost-update window small; the store itself serializes individual
// reads and writes but does not provide transactions across them.
package docstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Load when no document exists under the id.
var ErrNotFound = errors.New("docstore: document not found")

// Store is a SQLite-backed document store.
type Store struct {
	db *sql.DB
}

// Open creates or opens the document database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save marshals v and writes it as the document body under id, replacing
// any previous version.
func (s *Store) Save(id string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document %q: %w", id, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO documents (id, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, id, string(body), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Load reads the document under id and unmarshals it into v.
// Returns ErrNotFound when the document does not exist.
func (s *Store) Load(id string, v any) error {
	var body string
	err := s.db.QueryRow(`SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), v)
}

// Delete removes the document under id. Deleting a missing document is
// not an error.
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	return err
}

// List returns the ids of all stored documents.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
