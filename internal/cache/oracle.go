// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"log/slog"
	"os"
)

// Oracle decides whether a unit must be reprocessed or its cached result can
// be reused.
type Oracle struct {
	store *Store
	force bool
	log   *slog.Logger
}

// NewOracle returns an Oracle over store. With force set, every unit is
// reprocessed.
func NewOracle(store *Store, force bool, log *slog.Logger) *Oracle {
	if log == nil {
		log = slog.Default()
	}
	return &Oracle{store: store, force: force, log: log}
}

// Forced reports whether the oracle was built to reprocess everything.
func (o *Oracle) Forced() bool { return o.force }

// ShouldReprocess reports whether the unit stored under key must be
// processed again. fp is the fingerprint of the unit's current content.
// depDir, when non-empty, names a directory whose entries the unit depends
// on: if any of them was modified after the cached entry was written, the
// unit is stale even though its own content is unchanged. A missing depDir
// counts as having no dependencies.
//
// On reuse the cached entry is returned so the caller can serve its payload.
func (o *Oracle) ShouldReprocess(key, fp, depDir string) (bool, *NoteEntry) {
	if o.force {
		return true, nil
	}
	entry, ok := o.store.Note(key)
	if !ok {
		return true, nil
	}
	if entry.Hash != fp {
		o.log.Debug("content changed", "key", key)
		return true, nil
	}
	if depDir != "" {
		if newest, ok := newestModTime(depDir); ok && newest > entry.Timestamp {
			o.log.Debug("dependency newer than cache entry", "key", key, "dir", depDir)
			return true, nil
		}
	}
	return false, &entry
}

// newestModTime returns the latest modification time, in epoch seconds,
// among the immediate entries of dir. ok is false when dir is missing,
// unreadable, or empty.
func newestModTime(dir string) (newest float64, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, false
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if t := EpochSeconds(info.ModTime()); !ok || t > newest {
			newest, ok = t, true
		}
	}
	return newest, ok
}
