// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const indexFile = "index.md"

// File is the rendered form of one tracked artifact.
type File struct {
	ID     ID
	Digest string
	// Content is the most recent version's content.
	Content  string
	Versions []Version
	Related  []ID
}

// frontmatter is the YAML header written at the top of each artifact file.
type frontmatter struct {
	ID       ID       `yaml:"id"`
	Digest   string   `yaml:"digest"`
	Versions int      `yaml:"versions"`
	Parents  []string `yaml:"parents"`
}

// Emit returns one File per tracked artifact, ordered by ID.
func (r *Registry) Emit() []File {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]ID, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sortIDs(ids)

	files := make([]File, 0, len(ids))
	for _, id := range ids {
		rec := r.records[id]
		files = append(files, File{
			ID:       id,
			Digest:   rec.Digest,
			Content:  rec.Versions[len(rec.Versions)-1].Content,
			Versions: append([]Version(nil), rec.Versions...),
			Related:  r.related(rec),
		})
	}
	return files
}

// WriteDir writes every tracked artifact to dir as <id>.md plus an index.md.
func (r *Registry) WriteDir(dir string) error {
	return WriteDir(dir, r.Emit())
}

// WriteDir writes files to dir as <id>.md plus an index.md. With no files
// the index says so explicitly. The directory belongs to the run: Markdown
// files from earlier runs that are no longer listed are removed.
func WriteDir(dir string, files []File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := removeStale(dir, files); err != nil {
		return err
	}
	for _, f := range files {
		body, err := renderFile(f)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, string(f.ID)+".md")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("writing artifact %s: %w", f.ID, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, indexFile), []byte(renderIndex(files)), 0o644); err != nil {
		return fmt.Errorf("writing artifact index: %w", err)
	}
	return nil
}

// removeStale deletes *.md files in dir other than the index and the files
// about to be written.
func removeStale(dir string, files []File) error {
	keep := map[string]bool{indexFile: true}
	for _, f := range files {
		keep[string(f.ID)+".md"] = true
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading artifact directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".md" || keep[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("removing stale artifact %s: %w", name, err)
		}
	}
	return nil
}

func renderFile(f File) (string, error) {
	fm := frontmatter{ID: f.ID, Digest: f.Digest, Versions: len(f.Versions)}
	seen := make(map[string]bool)
	for _, v := range f.Versions {
		if !seen[v.ParentID] {
			seen[v.ParentID] = true
			fm.Parents = append(fm.Parents, v.ParentID)
		}
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("encoding frontmatter for %s: %w", f.ID, err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# Artifact %s\n\n", f.ID)
	b.WriteString(f.Content)
	b.WriteString("\n\n## Version History\n\n")
	for _, v := range f.Versions {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", v.Timestamp.Format(time.RFC3339), v.ParentID, v.UnitID)
	}
	b.WriteString("\n## Related Artifacts\n\n")
	for _, id := range f.Related {
		fmt.Fprintf(&b, "- [%s](%s.md)\n", id, id)
	}
	return b.String(), nil
}

func renderIndex(files []File) string {
	var b strings.Builder
	b.WriteString("# Artifacts\n\n")
	if len(files) == 0 {
		b.WriteString("No artifacts found.\n")
		return b.String()
	}
	for _, f := range files {
		fmt.Fprintf(&b, "- [%s](%s.md): %d version(s), %d related\n",
			f.ID, f.ID, len(f.Versions), len(f.Related))
	}
	return b.String()
}
