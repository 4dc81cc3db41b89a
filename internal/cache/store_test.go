// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notemill/pkg/types"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func openStore(t *testing.T, backend types.CacheBackend) *Store {
	t.Helper()
	s, err := Open(types.CacheConfig{Dir: filepath.Join(t.TempDir(), "cache"), Backend: backend}, quietLog)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func backends() []types.CacheBackend {
	return []types.CacheBackend{types.CacheJSON, types.CacheSQLite}
}

func TestOpen_CreatesEmptyTables(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	s, err := Open(types.CacheConfig{Dir: dir}, quietLog)
	require.NoError(t, err)

	for _, name := range []string{notesFile, analysisFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.JSONEq(t, "{}", string(data))
	}

	require.NoError(t, s.PutNote("a.md", NoteEntry{Hash: "h"}))

	// Reopening must not wipe existing tables.
	s2, err := Open(types.CacheConfig{Dir: dir}, quietLog)
	require.NoError(t, err)
	_, ok := s2.Note("a.md")
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(types.CacheConfig{Dir: t.TempDir(), Backend: "redis"}, quietLog)
	assert.Error(t, err)
}

func TestStore_NoteRoundTrip(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			s := openStore(t, backend)
			want := NewNoteEntry("abc123", time.Unix(100, 0), 2, "# Rendered\n")

			require.NoError(t, s.PutNote("notes/daily/a.md", want))

			for _, variant := range []string{"notes/daily/a.md", `notes\daily\a.md`, "notes\n/daily/a.md"} {
				got, ok := s.Note(variant)
				require.True(t, ok, "variant %q", variant)
				assert.Equal(t, want, got)
			}

			_, ok := s.Note("notes/daily/b.md")
			assert.False(t, ok)
		})
	}
}

func TestStore_PutReplacesWholesale(t *testing.T) {
	s := openStore(t, types.CacheJSON)
	require.NoError(t, s.PutNote("a.md", NewNoteEntry("h1", time.Unix(100, 0), 3, "old")))
	require.NoError(t, s.PutNote("a.md", NoteEntry{Hash: "h2", Timestamp: 200}))

	got, ok := s.Note("a.md")
	require.True(t, ok)
	assert.Equal(t, NoteEntry{Hash: "h2", Timestamp: 200}, got)
}

func TestStore_AnalysisRoundTrip(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			s := openStore(t, backend)
			require.NoError(t, s.PutAnalysis("fp1", "a cat on a keyboard"))

			got, ok := s.Analysis("fp1")
			require.True(t, ok)
			assert.Equal(t, "a cat on a keyboard", got)

			_, ok = s.Analysis("fp2")
			assert.False(t, ok)
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			s := openStore(t, backend)
			require.NoError(t, s.PutNote("a.md", NoteEntry{Hash: "h"}))
			require.NoError(t, s.PutNote("b.md", NoteEntry{Hash: "h"}))
			require.NoError(t, s.PutAnalysis("fp", "text"))

			for _, ns := range Namespaces {
				require.NoError(t, s.Clear(ns))
			}

			for _, key := range []string{"a.md", "b.md"} {
				_, ok := s.Note(key)
				assert.False(t, ok, key)
			}
			_, ok := s.Analysis("fp")
			assert.False(t, ok)

			n, err := s.Len(Notes)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_ClearIsPersisted(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	s, err := Open(types.CacheConfig{Dir: dir}, quietLog)
	require.NoError(t, err)
	require.NoError(t, s.PutNote("a.md", NoteEntry{Hash: "h"}))
	require.NoError(t, s.Clear(Notes))

	fresh, err := Open(types.CacheConfig{Dir: dir}, quietLog)
	require.NoError(t, err)
	_, ok := fresh.Note("a.md")
	assert.False(t, ok)
}

func TestStore_UnknownNamespace(t *testing.T) {
	s := openStore(t, types.CacheJSON)
	assert.ErrorIs(t, s.Clear("bookmarks"), ErrUnknownNamespace)
	_, err := s.Len("bookmarks")
	assert.ErrorIs(t, err, ErrUnknownNamespace)
}

func TestStore_CorruptionRecovery(t *testing.T) {
	for _, name := range []string{notesFile, analysisFile} {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "cache")
			s, err := Open(types.CacheConfig{Dir: dir}, quietLog)
			require.NoError(t, err)
			require.NoError(t, s.PutNote("a.md", NoteEntry{Hash: "h"}))
			require.NoError(t, s.PutAnalysis("fp", "text"))

			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte("\x00not json at all{{{"), 0o644))

			// The long-lived store notices the rewrite; a fresh one reads it cold.
			fresh, err := Open(types.CacheConfig{Dir: dir}, quietLog)
			require.NoError(t, err)
			for _, st := range []*Store{s, fresh} {
				if name == notesFile {
					_, ok := st.Note("a.md")
					assert.False(t, ok)
				} else {
					_, ok := st.Analysis("fp")
					assert.False(t, ok)
				}
			}

			require.NoError(t, fresh.PutNote("b.md", NoteEntry{Hash: "h2", Timestamp: 5}))
			require.NoError(t, fresh.PutAnalysis("fp2", "text2"))

			reread, err := Open(types.CacheConfig{Dir: dir}, quietLog)
			require.NoError(t, err)
			got, ok := reread.Note("b.md")
			require.True(t, ok)
			assert.Equal(t, NoteEntry{Hash: "h2", Timestamp: 5}, got)
			desc, ok := reread.Analysis("fp2")
			require.True(t, ok)
			assert.Equal(t, "text2", desc)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.True(t, json.Valid(data), "table should be valid JSON after recovery")
		})
	}
}

func TestStore_SQLiteCorruptRowIsMiss(t *testing.T) {
	s := openStore(t, types.CacheSQLite)
	_, err := s.db.Exec(`INSERT INTO entries (namespace, key, value) VALUES (?, ?, ?)`,
		string(Notes), "bad.md", "{not json")
	require.NoError(t, err)

	_, ok := s.Note("bad.md")
	assert.False(t, ok)

	require.NoError(t, s.PutNote("good.md", NoteEntry{Hash: "h"}))
	_, ok = s.Note("good.md")
	assert.True(t, ok)
}

func TestStore_ReloadsExternalWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	s, err := Open(types.CacheConfig{Dir: dir}, quietLog)
	require.NoError(t, err)
	_, ok := s.Note("a.md")
	require.False(t, ok)

	other, err := Open(types.CacheConfig{Dir: dir}, quietLog)
	require.NoError(t, err)
	require.NoError(t, other.PutNote("a.md", NoteEntry{Hash: "from-other-process"}))

	got, ok := s.Note("a.md")
	require.True(t, ok)
	assert.Equal(t, "from-other-process", got.Hash)
}

func TestStore_ConcurrentPutsAreNotLost(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			s := openStore(t, backend)
			const workers, perWorker = 8, 25

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						key := fmt.Sprintf("source-%d/note-%d.md", w, i)
						assert.NoError(t, s.PutNote(key, NoteEntry{Hash: key}))
					}
				}(w)
			}
			wg.Wait()

			n, err := s.Len(Notes)
			require.NoError(t, err)
			assert.Equal(t, workers*perWorker, n)
		})
	}
}
