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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// runRefresh forces a catalog re-fetch and reports the module count.
func runRefresh(cmd *cobra.Command, args []string) error {
	pipeline, logger, err := newPipeline("cli")
	if err != nil {
		return err
	}
	defer logger.Close()
	defer pipeline.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := pipeline.ForceRefresh(ctx); err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	fmt.Printf("Catalog refreshed: %d modules\n", pipeline.Registry().Len())
	return nil
}

// runClearCache drops the in-memory and on-disk catalog cache.
func runClearCache(cmd *cobra.Command, args []string) error {
	pipeline, logger, err := newPipeline("cli")
	if err != nil {
		return err
	}
	defer logger.Close()
	defer pipeline.Close()

	if err := pipeline.ClearCache(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Println("Catalog cache cleared")
	return nil
}
