// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"fmt"
	"math"
	"time"
)

// Namespace names one of the two independent cache tables.
type Namespace string

const (
	// Notes holds one NoteEntry per rendered unit (note, attachment, conversation).
	Notes Namespace = "notes"
	// Analysis holds generated image descriptions keyed by image fingerprint.
	Analysis Namespace = "analysis"
)

// Namespaces lists every namespace in a stable order.
var Namespaces = []Namespace{Notes, Analysis}

// ParseNamespace resolves a namespace name as typed on the command line.
func ParseNamespace(s string) (Namespace, error) {
	for _, ns := range Namespaces {
		if string(ns) == s {
			return ns, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNamespace, s)
}

// NoteEntry records the last successful processing of a unit. Entries are
// replaced wholesale on every write.
type NoteEntry struct {
	// Hash is the fingerprint of the unit's content when it was processed.
	Hash string `json:"hash"`

	// Timestamp is the processing time in epoch seconds.
	Timestamp float64 `json:"timestamp"`

	// AnalysisCount is the number of generated analyses embedded in the output.
	AnalysisCount int `json:"analysisCount"`

	// ProcessedContent is the rendered output, served as-is on a cache hit.
	// Empty when the caller did not store a payload.
	ProcessedContent string `json:"processedContent,omitempty"`
}

// NewNoteEntry builds an entry stamped with at.
func NewNoteEntry(hash string, at time.Time, analysisCount int, payload string) NoteEntry {
	return NoteEntry{
		Hash:             hash,
		Timestamp:        EpochSeconds(at),
		AnalysisCount:    analysisCount,
		ProcessedContent: payload,
	}
}

// Time returns Timestamp as a time.Time.
func (e NoteEntry) Time() time.Time {
	sec, frac := math.Modf(e.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// EpochSeconds converts t to fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
