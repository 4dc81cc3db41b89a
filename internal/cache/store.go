// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache implements the incremental-reprocessing cache: a durable
// store with a "notes" and an "analysis" namespace, and the staleness oracle
// that decides whether a cached result can be reused.
//
// Each namespace is an in-memory index guarded by its own mutex and flushed
// to disk on every write, so workers processing different sources share it
// safely. Corrupted tables are logged and replaced by empty ones.
package cache

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdiddy/notemill/pkg/types"
)

const (
	notesFile    = "notes.json"
	analysisFile = "analysis.json"
)

// Store is the process-wide cache shared by all jobs of a run.
type Store struct {
	dir      string
	notes    *table[NoteEntry]
	analyses *table[string]
	db       *sql.DB
}

// Open creates the cache directory and its backing tables if they do not
// exist and returns a Store over them. It is idempotent.
func Open(cfg types.CacheConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s := &Store{dir: dir}
	switch cfg.Backend {
	case types.CacheJSON, "":
		notesPath := filepath.Join(dir, notesFile)
		analysisPath := filepath.Join(dir, analysisFile)
		for _, p := range []string{notesPath, analysisPath} {
			if err := initJSONFile(p); err != nil {
				return nil, err
			}
		}
		s.notes = newTable[NoteEntry](&jsonFile[NoteEntry]{path: notesPath}, log)
		s.analyses = newTable[string](&jsonFile[string]{path: analysisPath}, log)
	case types.CacheSQLite:
		db, err := openSQLite(dir)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.notes = newTable[NoteEntry](&sqliteTable[NoteEntry]{db: db, ns: Notes}, log)
		s.analyses = newTable[string](&sqliteTable[string]{db: db, ns: Analysis}, log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	return s, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Close releases the database connection of the sqlite backend.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Note returns the entry stored for key. A missing key and an unreadable
// table both report a miss.
func (s *Store) Note(key string) (NoteEntry, bool) {
	return s.notes.get(NormalizeKey(key))
}

// PutNote replaces the entry for key.
func (s *Store) PutNote(key string, e NoteEntry) error {
	if err := s.notes.put(NormalizeKey(key), e); err != nil {
		return fmt.Errorf("caching note %s: %w", key, err)
	}
	return nil
}

// Analysis returns the description stored for an image fingerprint.
func (s *Store) Analysis(fp string) (string, bool) {
	return s.analyses.get(fp)
}

// PutAnalysis stores the description generated for an image fingerprint.
func (s *Store) PutAnalysis(fp, description string) error {
	if err := s.analyses.put(fp, description); err != nil {
		return fmt.Errorf("caching analysis %s: %w", fp, err)
	}
	return nil
}

// Clear empties one namespace.
func (s *Store) Clear(ns Namespace) error {
	switch ns {
	case Notes:
		return s.notes.clear()
	case Analysis:
		return s.analyses.clear()
	}
	return fmt.Errorf("%w: %q", ErrUnknownNamespace, ns)
}

// Len returns the number of entries in a namespace.
func (s *Store) Len(ns Namespace) (int, error) {
	switch ns {
	case Notes:
		return s.notes.len()
	case Analysis:
		return s.analyses.len()
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNamespace, ns)
}
