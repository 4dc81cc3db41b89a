// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns document attachments (PDF, Office files) into
// Markdown text through a pluggable backend.
package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdiddy/notemill/internal/container"
	"github.com/pdiddy/notemill/pkg/types"
)

// Converter transforms a document file into Markdown text.
type Converter interface {
	// Convert reads the document at path and returns its Markdown content.
	Convert(ctx context.Context, path string) (string, error)
}

// documentExts lists the attachment extensions handed to a Converter.
var documentExts = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".xlsx": true,
	".epub": true,
}

// IsDocument reports whether path names a convertible document.
func IsDocument(path string) bool {
	return documentExts[strings.ToLower(filepath.Ext(path))]
}

// New builds the converter selected by cfg. The none backend returns a nil
// Converter; callers count documents as skipped in that case.
func New(cfg types.ConversionConfig) (Converter, error) {
	switch cfg.Backend {
	case types.BackendNone:
		return nil, nil
	case types.BackendMarkitdown, "":
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		conv, err := NewMarkitdownConverter(rt)
		if err != nil {
			return nil, err
		}
		return conv, nil
	}
	return nil, fmt.Errorf("unknown conversion backend %q", cfg.Backend)
}
