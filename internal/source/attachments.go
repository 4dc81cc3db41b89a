// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/notemill/internal/cache"
	"github.com/pdiddy/notemill/internal/convert"
	"github.com/pdiddy/notemill/internal/fingerprint"
	"github.com/pdiddy/notemill/internal/scheduler"
	"github.com/pdiddy/notemill/internal/stats"
	"github.com/pdiddy/notemill/internal/vision"
)

var errEmptyDescription = errors.New("empty description")

type attachmentResult struct {
	markdown string
	analyses int
	// degraded is set when an attachment failed and the note should not be
	// cached.
	degraded bool
}

// renderAttachments copies every file in attDir next to the rendered note
// and returns the Markdown section describing them. Images get a vision
// description, documents are converted to inline Markdown.
func (s *NotesSource) renderAttachments(ctx context.Context, env *scheduler.Env, run *stats.Run, attDir, outDir string) (attachmentResult, error) {
	var res attachmentResult
	entries, err := os.ReadDir(attDir)
	if os.IsNotExist(err) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("reading attachments: %w", err)
	}

	linkDir := filepath.Base(attDir)
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := e.Name()
		src := filepath.Join(attDir, name)
		link := linkDir + "/" + name

		fmt.Fprintf(&b, "### %s\n\n", name)
		switch {
		case vision.IsImage(name):
			if s.copyImage(env, run, src, filepath.Join(outDir, linkDir, name)) != nil {
				res.degraded = true
			}
			fmt.Fprintf(&b, "![%s](%s)\n\n", name, link)
			desc, ok := s.describe(ctx, env, run, src)
			if !ok {
				res.degraded = res.degraded || s.describer != nil
				break
			}
			res.analyses++
			for _, line := range strings.Split(desc, "\n") {
				fmt.Fprintf(&b, "> %s\n", line)
			}
			b.WriteString("\n")
		case convert.IsDocument(name):
			text, ok := s.convertDocument(ctx, env, run, src)
			if !ok {
				res.degraded = res.degraded || s.converter != nil
				fmt.Fprintf(&b, "[%s](%s)\n\n", name, link)
				break
			}
			b.WriteString(strings.TrimSpace(text))
			b.WriteString("\n\n")
		default:
			fmt.Fprintf(&b, "[%s](%s)\n\n", name, link)
		}
	}
	res.markdown = b.String()
	return res, nil
}

// copyImages copies every image in attDir into outDir. Failures are recorded
// by copyImage.
func (s *NotesSource) copyImages(env *scheduler.Env, run *stats.Run, attDir, outDir string) {
	entries, err := os.ReadDir(attDir)
	if err != nil {
		return
	}
	linkDir := filepath.Base(attDir)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !vision.IsImage(name) {
			continue
		}
		_ = s.copyImage(env, run, filepath.Join(attDir, name), filepath.Join(outDir, linkDir, name))
	}
}

// copyImage copies an image attachment into the output tree. An identical
// copy already in place counts as served from cache.
func (s *NotesSource) copyImage(env *scheduler.Env, run *stats.Run, src, dst string) error {
	data, err := os.ReadFile(src)
	if err == nil {
		if existing, statErr := os.ReadFile(dst); statErr == nil && fingerprint.Bytes(existing) == fingerprint.Bytes(data) {
			run.AddImageFromCache(TypeNotes)
			return nil
		}
		err = writeFile(dst, string(data))
	}
	if err != nil {
		env.Log.Warn("copying image failed", "image", src, "error", err)
		run.AddImageSkipped(TypeNotes)
		run.AddError(fmt.Sprintf("%s: %v", src, err), TypeNotes)
		return err
	}
	run.AddImageGenerated(TypeNotes)
	return nil
}

// describe returns a vision description of the image at path. Descriptions
// are cached by image fingerprint, so a renamed or shared image is only
// described once.
func (s *NotesSource) describe(ctx context.Context, env *scheduler.Env, run *stats.Run, path string) (string, bool) {
	if s.describer == nil {
		run.AddAnalysisSkipped(TypeNotes)
		return "", false
	}
	fp, err := fingerprint.File(path)
	if err != nil {
		run.AddAnalysisSkipped(TypeNotes)
		run.AddError(fmt.Sprintf("%s: %v", path, err), TypeNotes)
		return "", false
	}
	if desc, ok := env.Cache.Analysis(fp); ok && !env.Oracle.Forced() {
		run.AddAnalysisFromCache(TypeNotes)
		return desc, true
	}

	data, err := os.ReadFile(path)
	if err == nil {
		var desc string
		desc, err = s.describer.Describe(ctx, data)
		if err == nil && desc != "" {
			if perr := env.Cache.PutAnalysis(fp, desc); perr != nil {
				env.Log.Warn("caching image description failed", "image", path, "error", perr)
			}
			run.AddAnalysisGenerated(TypeNotes)
			return desc, true
		}
	}
	if err == nil {
		err = errEmptyDescription
	}
	env.Log.Warn("describing image failed", "image", path, "error", err)
	run.AddAnalysisSkipped(TypeNotes)
	run.AddError(fmt.Sprintf("%s: %v", path, err), TypeNotes)
	return "", false
}

// convertDocument returns the Markdown rendering of a document attachment,
// cached in the notes namespace under the attachment's own key.
func (s *NotesSource) convertDocument(ctx context.Context, env *scheduler.Env, run *stats.Run, path string) (string, bool) {
	if s.converter == nil {
		run.AddDocumentSkipped(TypeNotes)
		return "", false
	}
	fp, err := fingerprint.File(path)
	if err != nil {
		run.AddDocumentSkipped(TypeNotes)
		run.AddError(fmt.Sprintf("%s: %v", path, err), TypeNotes)
		return "", false
	}
	key := s.key(path)
	if rerun, entry := env.Oracle.ShouldReprocess(key, fp, ""); !rerun && entry.ProcessedContent != "" {
		run.AddDocumentFromCache(TypeNotes)
		return entry.ProcessedContent, true
	}

	text, err := s.converter.Convert(ctx, path)
	if err != nil {
		env.Log.Warn("converting document failed", "document", path, "error", err)
		run.AddDocumentSkipped(TypeNotes)
		run.AddError(fmt.Sprintf("%s: %v", path, err), TypeNotes)
		return "", false
	}
	if perr := env.Cache.PutNote(key, cache.NewNoteEntry(fp, s.now(), 0, text)); perr != nil {
		env.Log.Warn("caching converted document failed", "document", path, "error", perr)
	}
	run.AddDocumentGenerated(TypeNotes)
	return text, true
}
