// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/notemill/internal/cache"
	"github.com/pdiddy/notemill/internal/logging"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the incremental cache",
	Long: `Cache reports the number of entries in each cache namespace or clears
them. Clearing the notes namespace forces every note to be reprocessed on the
next run; clearing analysis discards stored image descriptions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"root":          "root",
			"cache.backend": "cache-backend",
		})
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of entries per namespace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(store *cache.Store) error {
			return printCacheStats(os.Stdout, store)
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [notes|analysis|all]",
	Short: "Clear one namespace (notes or analysis), or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespaces := cache.Namespaces
		if len(args) == 1 && args[0] != "all" {
			ns, err := cache.ParseNamespace(args[0])
			if err != nil {
				return err
			}
			namespaces = []cache.Namespace{ns}
		}
		return withCache(func(store *cache.Store) error {
			for _, ns := range namespaces {
				if err := store.Clear(ns); err != nil {
					return err
				}
				fmt.Printf("Cleared %s.\n", ns)
			}
			return nil
		})
	},
}

func withCache(fn func(*cache.Store) error) error {
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
	return fn(store)
}

func printCacheStats(w io.Writer, store *cache.Store) error {
	fmt.Fprintf(w, "Cache directory: %s\n", store.Dir())
	for _, ns := range cache.Namespaces {
		n, err := store.Len(ns)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %-10s %d\n", ns, n)
	}
	return nil
}

func init() {
	cacheCmd.PersistentFlags().String("root", "", "working root the cache directory is relative to (default \".\")")
	cacheCmd.PersistentFlags().String("cache-backend", "", "cache persistence: json or sqlite")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
