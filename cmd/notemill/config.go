// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/notemill/pkg/types"
)

// envKeyReplacer maps nested keys to environment names:
// vision.endpoint -> NOTEMILL_VISION_ENDPOINT.
var envKeyReplacer = strings.NewReplacer(".", "_")

// bindFlags binds the named flags of cmd to configuration keys. Binding
// happens when the command runs so that commands sharing a key each bind
// their own flag.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// setDefaults registers every configuration key with viper so that
// AutomaticEnv and Unmarshal see keys that are absent from the config file.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()
	v.SetDefault("root", d.Root)
	v.SetDefault("dest", d.Dest)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.backend", string(d.Cache.Backend))
	v.SetDefault("cache.force", d.Cache.Force)
	v.SetDefault("artifacts.dir", d.Artifacts.Dir)
	v.SetDefault("scheduler.workers", d.Scheduler.Workers)
	v.SetDefault("conversion.backend", string(d.Conversion.Backend))
	v.SetDefault("vision.endpoint", d.Vision.Endpoint)
	v.SetDefault("vision.model", d.Vision.Model)
	v.SetDefault("vision.prompt", d.Vision.Prompt)
	v.SetDefault("vision.timeout", d.Vision.Timeout)
	v.SetDefault("vision.max_retries", d.Vision.MaxRetries)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
}

// loadConfig resolves the effective configuration from defaults, the config
// file, NOTEMILL_* environment variables, and bound flags, in increasing
// order of precedence.
func loadConfig(v *viper.Viper) (types.Config, error) {
	setDefaults(v)
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	switch cfg.Cache.Backend {
	case types.CacheJSON, types.CacheSQLite:
	default:
		return types.Config{}, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if cfg.Scheduler.Workers < 0 {
		return types.Config{}, fmt.Errorf("workers must not be negative, got %d", cfg.Scheduler.Workers)
	}
	return cfg, nil
}
