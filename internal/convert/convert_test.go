// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/notemill/pkg/types"
)

// fakeRuntime implements container.Runtime for testing.
type fakeRuntime struct {
	imageErr error
	runErr   error
	output   string
	gotArgs  []string
	gotInput string
}

func (f *fakeRuntime) Name() string             { return "fake" }
func (f *fakeRuntime) Available() bool          { return true }
func (f *fakeRuntime) ImageExists(string) error { return f.imageErr }
func (f *fakeRuntime) Run(_ context.Context, _ string, args []string, stdin io.Reader, stdout io.Writer) error {
	f.gotArgs = args
	data, _ := io.ReadAll(stdin)
	f.gotInput = string(data)
	if f.runErr != nil {
		return f.runErr
	}
	_, err := io.WriteString(stdout, f.output)
	return err
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMarkitdownConverter(t *testing.T) {
	tests := []struct {
		name     string
		rt       *fakeRuntime
		file     string
		wantOut  string
		wantArgs string
		wantErr  string
	}{
		{
			name:     "pdf converted",
			rt:       &fakeRuntime{output: "# Report\n\nBody"},
			file:     "report.pdf",
			wantOut:  "# Report\n\nBody",
			wantArgs: "-x pdf",
		},
		{
			name:     "docx passes extension hint",
			rt:       &fakeRuntime{output: "text"},
			file:     "Minutes.DOCX",
			wantOut:  "text",
			wantArgs: "-x docx",
		},
		{
			name:    "empty output is an error",
			rt:      &fakeRuntime{},
			file:    "blank.pdf",
			wantErr: "empty output",
		},
		{
			name:    "container failure",
			rt:      &fakeRuntime{runErr: errors.New("exit status 1")},
			file:    "broken.pdf",
			wantErr: "exit status 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeDoc(t, tt.file, "document bytes")
			conv, err := NewMarkitdownConverter(tt.rt)
			if err != nil {
				t.Fatal(err)
			}

			got, err := conv.Convert(context.Background(), path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantOut {
				t.Errorf("output = %q, want %q", got, tt.wantOut)
			}
			if args := strings.Join(tt.rt.gotArgs, " "); args != tt.wantArgs {
				t.Errorf("args = %q, want %q", args, tt.wantArgs)
			}
			if tt.rt.gotInput != "document bytes" {
				t.Errorf("container stdin = %q", tt.rt.gotInput)
			}
		})
	}
}

func TestNewMarkitdownConverter_MissingImage(t *testing.T) {
	_, err := NewMarkitdownConverter(&fakeRuntime{imageErr: errors.New("no such image")})
	if err == nil || !strings.Contains(err.Error(), "markitdown image not available") {
		t.Fatalf("expected missing image error, got %v", err)
	}
}

func TestIsDocument(t *testing.T) {
	for path, want := range map[string]bool{
		"a.pdf":        true,
		"b.DOCX":       true,
		"c.xlsx":       true,
		"photo.png":    false,
		"notes.md":     false,
		"no-extension": false,
	} {
		if got := IsDocument(path); got != want {
			t.Errorf("IsDocument(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNew_NoneBackend(t *testing.T) {
	conv, err := New(types.ConversionConfig{Backend: types.BackendNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv != nil {
		t.Errorf("expected nil converter for none backend")
	}

	if _, err := New(types.ConversionConfig{Backend: "grobid"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
