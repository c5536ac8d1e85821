// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// prefetchConcurrency bounds the fan-out so startup does not hammer the
// API. The request limiter spaces the calls anyway; the bound caps how
// many are queued on it.
const prefetchConcurrency = 4

// Prefetch warms the cache with everything validation needs: the module
// list, the reference lists, and the per-part filter catalogs (generic
// values, web sources) of every module.
//
// Individual fetch failures are logged and skipped. Prefetch only
// returns an error when the module list itself cannot be obtained,
// since nothing can be validated without it.
func Prefetch(ctx context.Context, client *Client, registry *Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	modules, degraded, err := client.FetchModulesBasic(ctx, false)
	if err != nil {
		return err
	}
	registry.Update(modules)
	logger.Info("module catalog loaded", "modules", len(modules), "degraded", degraded)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)

	fetch := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
				logger.Warn("prefetch skipped", "target", name, "error", err)
			}
			return nil
		})
	}

	fetch("municipalities", func(ctx context.Context) error {
		_, _, err := client.FetchMunicipalities(ctx, false)
		return err
	})
	fetch("branch-codes", func(ctx context.Context) error {
		_, _, err := client.FetchBranchCodes(ctx, false)
		return err
	})
	fetch("regions", func(ctx context.Context) error {
		_, _, err := client.FetchRegions(ctx, false)
		return err
	})
	fetch("court-districts", func(ctx context.Context) error {
		_, _, err := client.FetchCourtDistricts(ctx, false)
		return err
	})

	for _, module := range modules {
		for _, part := range module.Parts {
			switch part.Part {
			case PartGenericValue:
				partID := part.ID
				fetch("generic-values", func(ctx context.Context) error {
					_, _, err := client.FetchGenericValues(ctx, partID, false)
					return err
				})
			case PartWebSource:
				moduleID := module.ID
				fetch("web-sources", func(ctx context.Context) error {
					_, _, err := client.FetchWebSources(ctx, moduleID, false)
					return err
				})
			}
		}
	}

	return g.Wait()
}
