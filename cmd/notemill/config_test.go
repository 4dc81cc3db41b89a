// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notemill/internal/cache"
	"github.com/pdiddy/notemill/pkg/types"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("cache.backend", "sqlite")
	v.Set("scheduler.workers", 3)
	v.Set("vision.timeout", "30s")
	v.Set("vision.endpoint", "http://localhost:11434")

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, types.CacheSQLite, cfg.Cache.Backend)
	assert.Equal(t, 3, cfg.Scheduler.Workers)
	assert.Equal(t, 30*time.Second, cfg.Vision.Timeout)
	assert.Equal(t, "http://localhost:11434", cfg.Vision.Endpoint)
	assert.Equal(t, "llava", cfg.Vision.Model)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("NOTEMILL_CACHE_DIR", "/tmp/notemill-cache")
	v := viper.New()
	v.SetEnvPrefix("NOTEMILL")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/notemill-cache", cfg.Cache.Dir)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"unknown backend", "cache.backend", "redis"},
		{"negative workers", "scheduler.workers", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := loadConfig(v)
			assert.Error(t, err)
		})
	}
}

func TestOpenCache_RelativeToRoot(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Root = t.TempDir()

	store, err := openCache(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, filepath.Join(cfg.Root, "cache"), store.Dir())

	require.NoError(t, store.PutNote("a.md", cache.NoteEntry{Hash: "h"}))

	var buf bytes.Buffer
	require.NoError(t, printCacheStats(&buf, store))
	assert.Contains(t, buf.String(), "notes      1")
	assert.Contains(t, buf.String(), "analysis   0")
}
