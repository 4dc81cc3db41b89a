// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact implements a content-addressed registry for generated
// sub-documents (code blocks, structured snippets) that recur across many
// parent documents. Identical content always maps to one record; each
// occurrence is appended to the record's version history, and artifacts
// found under the same parent are recorded as related.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// ShortIDLen is the number of hex digits of the digest used as an ID.
	ShortIDLen = 12
	// idStep is how many hex digits are added when a short ID collides.
	idStep = 4
)

// ErrUnknownArtifact is returned when an ID has not been tracked.
var ErrUnknownArtifact = errors.New("unknown artifact")

// ID is the short, display form of an artifact's content digest.
type ID string

// Version is one occurrence of an artifact.
type Version struct {
	Content   string    `json:"content" yaml:"content"`
	UnitID    string    `json:"unit_id" yaml:"unit_id"`
	ParentID  string    `json:"parent_id" yaml:"parent_id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Record is the history of one distinct normalized content.
type Record struct {
	ID ID
	// Digest is the full SHA-256 of the normalized content, in hex.
	Digest   string
	Versions []Version
	parents  map[string]struct{}
}

// Registry tracks artifacts for a run. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	records  map[ID]*Record
	byDigest map[string]ID
	parents  map[string]map[ID]struct{}
	now      func() time.Time
	log      *slog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		records:  make(map[ID]*Record),
		byDigest: make(map[string]ID),
		parents:  make(map[string]map[ID]struct{}),
		now:      time.Now,
		log:      log,
	}
}

// Normalize trims surrounding whitespace and unifies line endings to "\n".
func Normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.TrimSpace(content)
}

// Digest returns the hex SHA-256 of the normalized UTF-8 content.
func Digest(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}

// Track records an occurrence of content produced by unitID under parentID
// and returns the artifact's ID.
func (r *Registry) Track(content, unitID, parentID string) ID {
	normalized := Normalize(content)
	digest := Digest(normalized)

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byDigest[digest]
	if !ok {
		id = r.assignID(digest)
		r.byDigest[digest] = id
		r.records[id] = &Record{ID: id, Digest: digest, parents: make(map[string]struct{})}
	}
	rec := r.records[id]
	rec.Versions = append(rec.Versions, Version{
		Content:   normalized,
		UnitID:    unitID,
		ParentID:  parentID,
		Timestamp: r.now().UTC(),
	})
	rec.parents[parentID] = struct{}{}

	siblings, ok := r.parents[parentID]
	if !ok {
		siblings = make(map[ID]struct{})
		r.parents[parentID] = siblings
	}
	siblings[id] = struct{}{}
	return id
}

// assignID returns the shortest prefix of digest, starting at ShortIDLen
// digits, not already used by a different digest. Callers hold r.mu.
func (r *Registry) assignID(digest string) ID {
	for n := ShortIDLen; n < len(digest); n += idStep {
		id := ID(digest[:n])
		if _, taken := r.records[id]; !taken {
			return id
		}
		r.log.Warn("artifact id collision, extending id", "id", id, "digest", digest)
	}
	return ID(digest)
}

// Related returns, sorted, the IDs of every other artifact that shares a
// parent with id.
func (r *Registry) Related(id ID) ([]ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrUnknownArtifact
	}
	return r.related(rec), nil
}

// related is Related without locking. Callers hold r.mu.
func (r *Registry) related(rec *Record) []ID {
	set := make(map[ID]struct{})
	for parent := range rec.parents {
		for other := range r.parents[parent] {
			if other != rec.ID {
				set[other] = struct{}{}
			}
		}
	}
	ids := make([]ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Lookup returns a copy of the record for id.
func (r *Registry) Lookup(id ID) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	cp := *rec
	cp.Versions = append([]Version(nil), rec.Versions...)
	cp.parents = nil
	return cp, true
}

// Len returns the number of distinct artifacts tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
