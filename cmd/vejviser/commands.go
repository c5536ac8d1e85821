// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/vejviser/pkg/logging"
	"github.com/AleutianAI/vejviser/services/recipe"
)

// defaultBaseURL is the production KM24 API endpoint.
const defaultBaseURL = "https://km24.dk/api"

// --- Global Command Variables ---
var (
	baseURL    string
	apiKey     string
	cacheDir   string
	tablesFile string
	logDir     string
	debug      bool

	port        int
	goal        string
	exportSteps bool

	rootCmd = &cobra.Command{
		Use:   "vejviser",
		Short: "Validate KM24 monitoring recipes against the live module catalog",
		Long: `Vejviser normalizes LLM-generated investigation recipes, verifies
every filter against real KM24 module metadata and reports rule
violations instead of shipping broken monitoring steps.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway (validate + admin + metrics)",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	validateCmd = &cobra.Command{
		Use:   "validate [recipe.json]",
		Short: "Validate a recipe document from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate, // Defined in cmd_validate.go
	}

	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Force a catalog re-fetch, bypassing the cache",
		RunE:  runRefresh, // Defined in cmd_admin.go
	}

	clearCacheCmd = &cobra.Command{
		Use:   "clear-cache",
		Short: "Drop every cached catalog payload, memory and disk",
		RunE:  runClearCache, // Defined in cmd_admin.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", envOr("KM24_BASE_URL", defaultBaseURL), "KM24 API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("KM24_API_KEY"), "KM24 API key (X-API-Key header)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", envOr("VEJVISER_CACHE_DIR", ""), "Directory for the persistent catalog cache (empty disables)")
	rootCmd.PersistentFlags().StringVar(&tablesFile, "tables", envOr("VEJVISER_TABLES_FILE", ""), "YAML file overlaying the embedded validation tables")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for JSON log files (empty disables)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	serveCmd.Flags().IntVar(&port, "port", envOrInt("VEJVISER_PORT", 8080), "Port to listen on")

	validateCmd.Flags().StringVar(&goal, "goal", "", "Investigation goal, used to fill missing overview fields")
	validateCmd.Flags().BoolVar(&exportSteps, "export", false, "Emit API-ready step payloads alongside the recipe")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(clearCacheCmd)
}

// newPipeline builds the validation pipeline from the global flags.
// The caller owns Close on both returns.
func newPipeline(service string) (*recipe.Pipeline, *logging.Logger, error) {
	level := logging.LevelInfo
	if debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  logDir,
		Service: service,
	})

	pipeline, err := recipe.New(recipe.Config{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		CacheDir:       cacheDir,
		TablesOverride: tablesFile,
		TTL:            24 * time.Hour,
		Logger:         logger.Slog(),
	})
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	return pipeline, logger, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
