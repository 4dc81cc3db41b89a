// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fileStamp identifies one version of a file on disk.
type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func (a fileStamp) equal(b fileStamp) bool {
	return a.exists == b.exists && a.size == b.size && a.modTime.Equal(b.modTime)
}

func statStamp(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, size: info.Size(), modTime: info.ModTime()}
}

// jsonFile persists a table as a single JSON object, rewritten in full on
// every put.
type jsonFile[V any] struct {
	path  string
	stamp fileStamp
}

func (f *jsonFile[V]) name() string { return f.path }

func (f *jsonFile[V]) load() (map[string]V, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.stamp = fileStamp{}
		return make(map[string]V), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	f.stamp = statStamp(f.path)

	var entries map[string]V
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &CorruptError{Table: f.path, Err: err}
	}
	if entries == nil {
		entries = make(map[string]V)
	}
	return entries, nil
}

func (f *jsonFile[V]) put(_ string, _ V, all map[string]V) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", f.path, err)
	}
	return f.write(data)
}

func (f *jsonFile[V]) reset() error {
	return f.write([]byte("{}"))
}

func (f *jsonFile[V]) changed() bool {
	return !statStamp(f.path).equal(f.stamp)
}

// write replaces the file through a temp file and rename so readers never
// observe a partially written table.
func (f *jsonFile[V]) write(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	f.stamp = statStamp(f.path)
	return nil
}

// initJSONFile creates path holding an empty object unless it already exists.
func initJSONFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}
