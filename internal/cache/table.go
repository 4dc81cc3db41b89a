// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"errors"
	"log/slog"
	"sync"
)

// persister moves one table between memory and durable storage.
type persister[V any] interface {
	// name identifies the table in log messages.
	name() string
	// load returns every persisted entry. Undecodable data yields a *CorruptError.
	load() (map[string]V, error)
	// put durably records key=v. all is the full in-memory table after the
	// update, for backends that rewrite the whole table.
	put(key string, v V, all map[string]V) error
	// reset replaces the persisted table with an empty one.
	reset() error
	// changed reports whether storage was modified by someone else since the
	// last load or put.
	changed() bool
}

// table is an in-memory index over a persister. All access is serialized by
// mu, so concurrent workers never lose each other's writes.
type table[V any] struct {
	mu      sync.Mutex
	p       persister[V]
	entries map[string]V
	loaded  bool
	log     *slog.Logger
}

func newTable[V any](p persister[V], log *slog.Logger) *table[V] {
	return &table[V]{p: p, log: log}
}

// sync loads the table when it has not been loaded yet or storage changed
// underneath it. Corruption resets the table; other read failures leave it
// empty in memory and are returned. Callers hold t.mu.
func (t *table[V]) sync() error {
	if t.loaded && !t.p.changed() {
		return nil
	}
	entries, err := t.p.load()
	if err == nil {
		t.entries = entries
		t.loaded = true
		return nil
	}

	t.entries = make(map[string]V)
	var corrupt *CorruptError
	if !errors.As(err, &corrupt) {
		return err
	}
	t.log.Warn("cache table corrupted, starting empty", "table", t.p.name(), "error", corrupt.Err)
	if rerr := t.p.reset(); rerr != nil {
		t.log.Warn("could not reset corrupted cache table", "table", t.p.name(), "error", rerr)
	}
	t.loaded = true
	return nil
}

func (t *table[V]) get(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.sync(); err != nil {
		t.log.Warn("reading cache table", "table", t.p.name(), "error", err)
	}
	v, ok := t.entries[key]
	return v, ok
}

func (t *table[V]) put(key string, v V) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.sync(); err != nil {
		return err
	}
	prev, had := t.entries[key]
	t.entries[key] = v
	if err := t.p.put(key, v, t.entries); err != nil {
		if had {
			t.entries[key] = prev
		} else {
			delete(t.entries, key)
		}
		return err
	}
	return nil
}

func (t *table[V]) clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.p.reset(); err != nil {
		return err
	}
	t.entries = make(map[string]V)
	t.loaded = true
	return nil
}

func (t *table[V]) len() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.sync(); err != nil {
		return 0, err
	}
	return len(t.entries), nil
}
