// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vision describes images with a vision-language model served over
// an Ollama-compatible HTTP API.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pdiddy/notemill/pkg/types"
)

// Describer turns image bytes into a text description.
type Describer interface {
	Describe(ctx context.Context, image []byte) (string, error)
}

// imageExts lists the attachment extensions handed to a Describer.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// IsImage reports whether path names an image attachment.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// OllamaClient calls POST {endpoint}/api/generate with a single image.
type OllamaClient struct {
	client     *http.Client
	endpoint   string
	model      string
	prompt     string
	maxRetries int
}

// New returns a Describer for cfg, or nil when no endpoint is configured.
func New(cfg types.VisionConfig) Describer {
	if cfg.Endpoint == "" {
		return nil
	}
	return NewOllamaClient(cfg, &http.Client{Timeout: cfg.Timeout})
}

// NewOllamaClient returns a client that sends requests with hc.
func NewOllamaClient(cfg types.VisionConfig, hc *http.Client) *OllamaClient {
	return &OllamaClient{
		client:     hc,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		prompt:     cfg.Prompt,
		maxRetries: cfg.MaxRetries,
	}
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Describe sends image to the model and returns its trimmed response.
func (c *OllamaClient) Describe(ctx context.Context, image []byte) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: c.prompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		return "", fmt.Errorf("calling vision model: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading vision response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decoding vision response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return "", fmt.Errorf("vision model returned HTTP %d: %s", resp.StatusCode, msg)
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", fmt.Errorf("vision model returned an empty description")
	}
	return text, nil
}
