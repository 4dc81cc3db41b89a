// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// WriteSummary prints a per-source table and a batch summary line to w.
func (r *Run) WriteSummary(w io.Writer) {
	if len(r.Sources) > 0 {
		fmt.Fprintf(w, "%-16s  %9s  %6s  %11s  %7s  %6s\n",
			"Source", "Processed", "Cached", "Regenerated", "Skipped", "Errors")
		fmt.Fprintln(w, strings.Repeat("-", 68))
		for _, name := range r.SourceTypes() {
			c := r.Sources[name]
			fmt.Fprintf(w, "%-16s  %9d  %6d  %11d  %7d  %6d\n",
				name, c.Processed, c.FromCache, c.Regenerated, c.Skipped, len(c.Errors))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Run summary: %d processed (%d cached, %d regenerated), %d skipped, %d error(s)\n",
		r.Processed, r.FromCache, r.Regenerated, r.Skipped, len(r.Errors))
	fmt.Fprintf(w, "  documents: %d generated, %d cached, %d skipped\n",
		r.Documents.Generated, r.Documents.FromCache, r.Documents.Skipped)
	fmt.Fprintf(w, "  images:    %d generated, %d cached, %d skipped\n",
		r.Images.Generated, r.Images.FromCache, r.Images.Skipped)
	fmt.Fprintf(w, "  analyses:  %d generated, %d cached, %d skipped\n",
		r.Analyses.Generated, r.Analyses.FromCache, r.Analyses.Skipped)
}

// WriteReport writes r to path as YAML, or as JSON when path ends in .json.
func (r *Run) WriteReport(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = yaml.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
