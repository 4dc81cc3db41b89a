// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/notemill/internal/artifact"
	"github.com/pdiddy/notemill/internal/cache"
	"github.com/pdiddy/notemill/internal/convert"
	"github.com/pdiddy/notemill/internal/logging"
	"github.com/pdiddy/notemill/internal/scheduler"
	"github.com/pdiddy/notemill/internal/source"
	"github.com/pdiddy/notemill/internal/vision"
	"github.com/pdiddy/notemill/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [dirs...]",
	Short: "Convert notes directories to Markdown",
	Long: `Convert renders every note in the given directories, with its attachments,
into Markdown under the destination root. Each directory is one source and
sources are processed concurrently.

Notes whose content and attachments are unchanged since the last run are
served from the cache. Use --force to reprocess everything. Code blocks are
written to an artifact index under <dest>/artifacts.`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"root":               "root",
			"dest":               "dest",
			"scheduler.workers":  "workers",
			"cache.force":        "force",
			"cache.backend":      "cache-backend",
			"conversion.backend": "conversion-backend",
			"vision.endpoint":    "vision-endpoint",
		})
	},
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("root", "", "working root that cache keys are relative to (default \".\")")
	convertCmd.Flags().String("dest", "", "destination root for rendered output (default \"output\")")
	convertCmd.Flags().Int("workers", 0, "maximum concurrent sources (0 = one per CPU)")
	convertCmd.Flags().Bool("force", false, "reprocess every note regardless of the cache")
	convertCmd.Flags().String("cache-backend", "", "cache persistence: json or sqlite")
	convertCmd.Flags().String("conversion-backend", "", "document conversion: markitdown or none")
	convertCmd.Flags().String("vision-endpoint", "", "Ollama-compatible endpoint for image descriptions (empty disables)")
	convertCmd.Flags().String("report", "", "write the run report to this file (.yaml or .json)")
	convertCmd.Flags().String("metrics-file", "", "write Prometheus metrics in text format to this file")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := openCache(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	conv, err := convert.New(cfg.Conversion)
	if err != nil {
		log.Warn("document conversion disabled", "error", err)
		conv = nil
	}
	desc := vision.New(cfg.Vision)
	if desc == nil {
		log.Info("image description disabled, no vision endpoint configured")
	}

	sources := make([]scheduler.Source, 0, len(args))
	for _, dir := range args {
		sources = append(sources, source.NewNotesSource(dir, cfg.Root, cfg.Dest, conv, desc))
	}

	env := scheduler.Env{
		Cache:     store,
		Oracle:    cache.NewOracle(store, cfg.Cache.Force, log),
		Artifacts: artifact.NewRegistry(log),
		Log:       log,
		Out:       os.Stdout,
	}
	sched := scheduler.New(env, cfg.Scheduler.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := sched.Run(ctx, sources)
	if err != nil {
		return err
	}

	artifactDir := filepath.Join(cfg.Dest, cfg.Artifacts.Dir)
	if err := env.Artifacts.WriteDir(artifactDir); err != nil {
		return fmt.Errorf("writing artifacts: %w", err)
	}

	fmt.Println()
	run.WriteSummary(os.Stdout)

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		if err := run.WriteReport(path); err != nil {
			return err
		}
	}
	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		if err := sched.Metrics().WriteTextfile(path); err != nil {
			return err
		}
	}

	if run.HasErrors() {
		return fmt.Errorf("%d error(s) during conversion", len(run.Errors))
	}
	return nil
}

// openCache opens the cache store. A relative cache directory is resolved
// against the working root.
func openCache(cfg types.Config, log *slog.Logger) (*cache.Store, error) {
	cc := cfg.Cache
	if !filepath.IsAbs(cc.Dir) {
		cc.Dir = filepath.Join(cfg.Root, cc.Dir)
	}
	return cache.Open(cc, log)
}
