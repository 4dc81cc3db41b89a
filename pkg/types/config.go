// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared configuration and data structures for the
// notemill pipeline.
package types

import "time"

// CacheBackend selects how the incremental cache is persisted.
type CacheBackend string

const (
	// CacheJSON stores each namespace as a JSON object file (notes.json, analysis.json).
	CacheJSON CacheBackend = "json"
	// CacheSQLite stores both namespaces in cache.db.
	CacheSQLite CacheBackend = "sqlite"
)

// CacheConfig holds settings for the incremental-reprocessing cache.
type CacheConfig struct {
	// Dir is the cache directory (default "cache" under the working root).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Backend selects json or sqlite persistence (default json).
	Backend CacheBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Force reprocesses every unit regardless of cached state.
	Force bool `json:"force" yaml:"force" mapstructure:"force"`
}

// ArtifactConfig holds settings for generated-artifact output.
type ArtifactConfig struct {
	// Dir is the artifact directory name under the destination root (default "artifacts").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// SchedulerConfig holds settings for concurrent source processing.
type SchedulerConfig struct {
	// Workers caps the worker pool. Zero means one worker per available CPU.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// ConversionBackend identifies the document conversion tool used for attachments.
type ConversionBackend string

const (
	BackendMarkitdown ConversionBackend = "markitdown"
	BackendNone       ConversionBackend = "none"
)

// ConversionConfig holds settings for attachment document conversion.
type ConversionConfig struct {
	// Backend selects markitdown (container-based) or none.
	Backend ConversionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
}

// VisionConfig holds settings for the image description client.
type VisionConfig struct {
	// Endpoint is the base URL of an Ollama-compatible server. Empty disables
	// image description.
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Model is the vision model name (e.g. "llava").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Prompt is sent with every image.
	Prompt string `json:"prompt" yaml:"prompt" mapstructure:"prompt"`

	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Output is stderr, stdout, or a file path.
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// Config groups all settings for a run.
type Config struct {
	// Root is the working root that cache keys are relative to.
	Root string `json:"root" yaml:"root" mapstructure:"root"`

	// Dest is the destination root for rendered output.
	Dest string `json:"dest" yaml:"dest" mapstructure:"dest"`

	Cache      CacheConfig      `json:"cache" yaml:"cache" mapstructure:"cache"`
	Artifacts  ArtifactConfig   `json:"artifacts" yaml:"artifacts" mapstructure:"artifacts"`
	Scheduler  SchedulerConfig  `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Vision     VisionConfig     `json:"vision" yaml:"vision" mapstructure:"vision"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Root: ".",
		Dest: "output",
		Cache: CacheConfig{
			Dir:     "cache",
			Backend: CacheJSON,
		},
		Artifacts: ArtifactConfig{Dir: "artifacts"},
		Conversion: ConversionConfig{
			Backend: BackendMarkitdown,
		},
		Vision: VisionConfig{
			Model:      "llava",
			Prompt:     "Describe this image in detail for a markdown note.",
			Timeout:    120 * time.Second,
			MaxRetries: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
