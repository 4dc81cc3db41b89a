// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteFile = "cache.db"

func openSQLite(dir string) (*sql.DB, error) {
	dbPath := filepath.Join(dir, sqliteFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (namespace, key)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return db, nil
}

// sqliteTable persists one namespace as rows of JSON-encoded values. Each put
// is a single-row upsert.
type sqliteTable[V any] struct {
	db *sql.DB
	ns Namespace
}

func (s *sqliteTable[V]) name() string { return sqliteFile + ":" + string(s.ns) }

func (s *sqliteTable[V]) load() (map[string]V, error) {
	rows, err := s.db.Query(`SELECT key, value FROM entries WHERE namespace = ?`, string(s.ns))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.name(), err)
	}
	defer rows.Close()

	entries := make(map[string]V)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", s.name(), err)
		}
		var v V
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, &CorruptError{Table: s.name(), Err: fmt.Errorf("key %q: %w", key, err)}
		}
		entries[key] = v
	}
	return entries, rows.Err()
}

func (s *sqliteTable[V]) put(key string, v V, _ map[string]V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s entry: %w", s.name(), err)
	}
	_, err = s.db.Exec(
		`INSERT INTO entries (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value=excluded.value`,
		string(s.ns), key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("writing %s entry: %w", s.name(), err)
	}
	return nil
}

func (s *sqliteTable[V]) reset() error {
	if _, err := s.db.Exec(`DELETE FROM entries WHERE namespace = ?`, string(s.ns)); err != nil {
		return fmt.Errorf("clearing %s: %w", s.name(), err)
	}
	return nil
}

// changed is always false: the database is only written through this table.
func (s *sqliteTable[V]) changed() bool { return false }
