// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stats aggregates per-run processing results. Each job fills its
// own Run and the scheduler merges finished fragments into the run total.
package stats

import "sort"

// Category counts outcomes for one kind of expensive work.
type Category struct {
	Generated int `json:"generated" yaml:"generated"`
	FromCache int `json:"from_cache" yaml:"from_cache"`
	Skipped   int `json:"skipped" yaml:"skipped"`
}

func (c *Category) add(o Category) {
	c.Generated += o.Generated
	c.FromCache += o.FromCache
	c.Skipped += o.Skipped
}

// Counts is the set of counters kept for a whole run and for each source type.
type Counts struct {
	Processed   int      `json:"processed" yaml:"processed"`
	FromCache   int      `json:"from_cache" yaml:"from_cache"`
	Regenerated int      `json:"regenerated" yaml:"regenerated"`
	Skipped     int      `json:"skipped" yaml:"skipped"`
	Documents   Category `json:"documents" yaml:"documents"`
	Images      Category `json:"images" yaml:"images"`
	Analyses    Category `json:"analyses" yaml:"analyses"`
	Errors      []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// merge folds o into c.
func (c *Counts) merge(o Counts) {
	c.Regenerated = mergeRegenerated(*c, o)
	c.Processed += o.Processed
	c.FromCache += o.FromCache
	c.Skipped += o.Skipped
	c.Documents.add(o.Documents)
	c.Images.add(o.Images)
	c.Analyses.add(o.Analyses)
	c.Errors = append(c.Errors, o.Errors...)
}

// mergeRegenerated returns the regenerated count after merging src into dst.
// When every unit dst processed came from cache, the result is src's count;
// otherwise the counts are summed. This is the rule existing run reports
// were produced with. It is not associative, so it is kept in this one
// place until the intended semantics are settled.
func mergeRegenerated(dst, src Counts) int {
	if dst.Processed > 0 && dst.FromCache == dst.Processed {
		return src.Regenerated
	}
	return dst.Regenerated + src.Regenerated
}

func (c Counts) clone() Counts {
	c.Errors = append([]string(nil), c.Errors...)
	return c
}

// Run holds run-level counters plus a breakdown by source type. A Run is
// not safe for concurrent mutation; each job owns its own fragment.
type Run struct {
	Counts  `yaml:",inline"`
	Sources map[string]*Counts `json:"sources" yaml:"sources"`
}

// New returns an empty Run.
func New() *Run {
	return &Run{Sources: make(map[string]*Counts)}
}

// source returns the counters for sourceType, creating them on first use.
// An empty sourceType has no breakdown and returns nil.
func (r *Run) source(sourceType string) *Counts {
	if sourceType == "" {
		return nil
	}
	if r.Sources == nil {
		r.Sources = make(map[string]*Counts)
	}
	c, ok := r.Sources[sourceType]
	if !ok {
		c = &Counts{}
		r.Sources[sourceType] = c
	}
	return c
}

// update applies fn to the run-level counters and to sourceType's counters.
func (r *Run) update(sourceType string, fn func(*Counts)) {
	fn(&r.Counts)
	if c := r.source(sourceType); c != nil {
		fn(c)
	}
}

// Source returns a copy of the counters for sourceType.
func (r *Run) Source(sourceType string) (Counts, bool) {
	c, ok := r.Sources[sourceType]
	if !ok {
		return Counts{}, false
	}
	return c.clone(), true
}

// SourceTypes returns the source types seen in this run, sorted.
func (r *Run) SourceTypes() []string {
	names := make([]string, 0, len(r.Sources))
	for name := range r.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasErrors reports whether any error was recorded.
func (r *Run) HasErrors() bool {
	return len(r.Errors) > 0
}

// Merge folds other into r. Every counter except Regenerated is summed; see
// mergeRegenerated for that one.
func (r *Run) Merge(other *Run) {
	if other == nil {
		return
	}
	r.Counts.merge(other.Counts)
	for _, name := range other.SourceTypes() {
		r.source(name).merge(*other.Sources[name])
	}
}

// Clone returns a deep copy of r.
func (r *Run) Clone() *Run {
	cp := &Run{Counts: r.Counts.clone(), Sources: make(map[string]*Counts, len(r.Sources))}
	for name, c := range r.Sources {
		cc := c.clone()
		cp.Sources[name] = &cc
	}
	return cp
}

// AddFromCache counts a unit served from the cache.
func (r *Run) AddFromCache(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Processed++; c.FromCache++ })
}

// AddGenerated counts a unit that was processed again.
func (r *Run) AddGenerated(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Processed++; c.Regenerated++ })
}

// AddSkipped counts a unit that was not processed at all.
func (r *Run) AddSkipped(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Skipped++ })
}

// AddDocumentGenerated counts a document attachment produced in this run.
func (r *Run) AddDocumentGenerated(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Documents.Generated++ })
}

// AddDocumentFromCache counts a document attachment reused from an earlier run.
func (r *Run) AddDocumentFromCache(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Documents.FromCache++ })
}

// AddDocumentSkipped counts a document attachment that was not produced.
func (r *Run) AddDocumentSkipped(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Documents.Skipped++ })
}

// AddImageGenerated counts an image attachment produced in this run.
func (r *Run) AddImageGenerated(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Images.Generated++ })
}

// AddImageFromCache counts an image attachment reused from an earlier run.
func (r *Run) AddImageFromCache(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Images.FromCache++ })
}

// AddImageSkipped counts an image attachment that was not produced.
func (r *Run) AddImageSkipped(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Images.Skipped++ })
}

// AddAnalysisGenerated counts an image description produced in this run.
func (r *Run) AddAnalysisGenerated(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Analyses.Generated++ })
}

// AddAnalysisFromCache counts an image description reused from an earlier run.
func (r *Run) AddAnalysisFromCache(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Analyses.FromCache++ })
}

// AddAnalysisSkipped counts an image description that was not produced.
func (r *Run) AddAnalysisSkipped(sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Analyses.Skipped++ })
}

// AddError records msg in the flat error list and, when sourceType is set,
// in that source type's list.
func (r *Run) AddError(msg, sourceType string) {
	r.update(sourceType, func(c *Counts) { c.Errors = append(c.Errors, msg) })
}
