// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source holds format-specific source converters run by the
// scheduler. NotesSource converts a directory of plain Markdown or text notes
// whose attachments live in a sibling "<note>_attachments" directory.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/notemill/internal/cache"
	"github.com/pdiddy/notemill/internal/convert"
	"github.com/pdiddy/notemill/internal/fingerprint"
	"github.com/pdiddy/notemill/internal/scheduler"
	"github.com/pdiddy/notemill/internal/stats"
	"github.com/pdiddy/notemill/internal/vision"
)

// TypeNotes is the source type reported for NotesSource.
const TypeNotes = "notes"

const attachmentsSuffix = "_attachments"

var noteExts = map[string]bool{".md": true, ".markdown": true, ".txt": true}

// NotesSource converts one notes directory into dest/<name>/.
type NotesSource struct {
	name      string
	dir       string
	root      string
	dest      string
	converter convert.Converter
	describer vision.Describer
	now       func() time.Time
}

// NewNotesSource returns a source for dir. Cache keys are paths relative to
// root, and output goes to destRoot joined with the source name. A nil
// converter or describer skips documents or image descriptions.
func NewNotesSource(dir, root, destRoot string, conv convert.Converter, desc vision.Describer) *NotesSource {
	name := sourceName(dir, root)
	return &NotesSource{
		name:      name,
		dir:       dir,
		root:      root,
		dest:      filepath.Join(destRoot, filepath.FromSlash(name)),
		converter: conv,
		describer: desc,
		now:       time.Now,
	}
}

func (s *NotesSource) Type() string { return TypeNotes }

// Name is the directory's slash-separated path relative to the working root,
// or its base name when it lies outside the root. Two sources with the same
// name would share a destination, so the scheduler rejects that.
func (s *NotesSource) Name() string { return s.name }

func sourceName(dir, root string) string {
	if rel, err := filepath.Rel(root, dir); err == nil {
		rel = filepath.ToSlash(rel)
		if rel != "." && rel != ".." && !strings.HasPrefix(rel, "../") {
			return rel
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return filepath.Base(abs)
	}
	return filepath.Base(filepath.Clean(dir))
}

// Validate checks that the notes directory exists.
func (s *NotesSource) Validate() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// Convert renders every note under the directory. Per-note failures are
// recorded in the returned stats; only cancellation aborts the walk.
func (s *NotesSource) Convert(ctx context.Context, env *scheduler.Env) (*stats.Run, error) {
	notes, err := s.listNotes()
	if err != nil {
		return nil, err
	}

	run := stats.New()
	for _, path := range notes {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		rel := s.relPath(path)
		if err := s.convertNote(ctx, env, run, path); err != nil {
			if ctx.Err() != nil {
				return run, ctx.Err()
			}
			fmt.Fprintf(env.Out, "failed:    %s (%v)\n", rel, err)
			run.AddError(fmt.Sprintf("%s: %v", rel, err), TypeNotes)
		}
	}
	return run, nil
}

// listNotes returns note files in lexical order, skipping hidden and
// attachment directories.
func (s *NotesSource) listNotes() ([]string, error) {
	var notes []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.dir && (strings.HasPrefix(name, ".") || strings.HasSuffix(name, attachmentsSuffix)) {
				return filepath.SkipDir
			}
			return nil
		}
		if noteExts[strings.ToLower(filepath.Ext(name))] {
			notes = append(notes, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing notes in %s: %w", s.dir, err)
	}
	return notes, nil
}

func (s *NotesSource) convertNote(ctx context.Context, env *scheduler.Env, run *stats.Run, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rel := s.relPath(path)
	if strings.TrimSpace(string(data)) == "" {
		fmt.Fprintf(env.Out, "skipped:   %s (empty)\n", rel)
		run.AddSkipped(TypeNotes)
		return nil
	}
	key := s.key(path)
	outPath := filepath.Join(s.dest, strings.TrimSuffix(rel, filepath.Ext(rel))+".md")
	attDir := attachmentDir(path)

	// Extraction is cheap, so artifacts are tracked on cache hits too and
	// the artifact index always covers every note.
	var ids []string
	for _, b := range fencedBlocks(string(data)) {
		id := string(env.Artifacts.Track(b, key, key))
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}

	fp := fingerprint.Bytes(data)
	rerun, entry := env.Oracle.ShouldReprocess(key, fp, attDir)
	if !rerun && entry.ProcessedContent != "" {
		if err := writeFile(outPath, entry.ProcessedContent); err != nil {
			return err
		}
		// The cached Markdown links to copied images; restore any that are
		// missing from the output tree.
		s.copyImages(env, run, attDir, filepath.Dir(outPath))
		fmt.Fprintf(env.Out, "cached:    %s\n", rel)
		run.AddFromCache(TypeNotes)
		return nil
	}

	att, err := s.renderAttachments(ctx, env, run, attDir, filepath.Dir(outPath))
	if err != nil {
		return err
	}

	rendered, err := renderNote(rel, fp, s.now(), string(data), att.markdown, ids)
	if err != nil {
		return err
	}
	if err := writeFile(outPath, rendered); err != nil {
		return err
	}

	// A note rendered around a failed attachment is not cached, so the
	// attachment is retried on the next run.
	if !att.degraded {
		fresh := cache.NewNoteEntry(fp, s.now(), att.analyses, rendered)
		if err := env.Cache.PutNote(key, fresh); err != nil {
			return err
		}
	}
	fmt.Fprintf(env.Out, "converted: %s\n", rel)
	run.AddGenerated(TypeNotes)
	return nil
}

// key returns the cache key for path: its slash-separated path relative to
// the working root.
func (s *NotesSource) key(path string) string {
	if rel, err := filepath.Rel(s.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// relPath returns path relative to the notes directory.
func (s *NotesSource) relPath(path string) string {
	if rel, err := filepath.Rel(s.dir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.Base(path)
}

// attachmentDir returns the dependency directory for a note:
// "daily/2026-01-02.md" -> "daily/2026-01-02_attachments".
func attachmentDir(notePath string) string {
	return strings.TrimSuffix(notePath, filepath.Ext(notePath)) + attachmentsSuffix
}

// fencedBlocks returns the contents of every ``` fenced block in text. An
// unterminated fence runs to the end of the text.
func fencedBlocks(text string) []string {
	var (
		blocks  []string
		current []string
		inside  bool
	)
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inside {
				if b := strings.Join(current, "\n"); strings.TrimSpace(b) != "" {
					blocks = append(blocks, b)
				}
				current = nil
			}
			inside = !inside
			continue
		}
		if inside {
			current = append(current, line)
		}
	}
	if inside {
		if b := strings.Join(current, "\n"); strings.TrimSpace(b) != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

type noteFrontmatter struct {
	Source      string   `yaml:"source"`
	Fingerprint string   `yaml:"fingerprint"`
	ConvertedAt string   `yaml:"converted_at"`
	Artifacts   []string `yaml:"artifacts,omitempty"`
}

func renderNote(rel, fp string, at time.Time, body, attachments string, artifacts []string) (string, error) {
	header, err := yaml.Marshal(noteFrontmatter{
		Source:      rel,
		Fingerprint: fp,
		ConvertedAt: at.UTC().Format(time.RFC3339),
		Artifacts:   artifacts,
	})
	if err != nil {
		return "", fmt.Errorf("encoding frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n")
	if attachments != "" {
		b.WriteString("\n## Attachments\n\n")
		b.WriteString(attachments)
	}
	return b.String(), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

