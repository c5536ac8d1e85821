// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/vejviser/services/catalog"
	"github.com/AleutianAI/vejviser/services/catalog/observability"
	"github.com/AleutianAI/vejviser/services/recipe/datatypes"
)

// Config configures the validation pipeline.
type Config struct {
	// BaseURL of the KM24 API, e.g. "https://km24.dk/api".
	BaseURL string

	// APIKey for the X-API-Key header. Empty key means the catalog is
	// unreachable; validation still runs against cached data, if any.
	APIKey string

	// CacheDir enables persistent caching for warm restarts. Empty
	// disables persistence.
	CacheDir string

	// TablesOverride optionally points at a YAML file overlaying the
	// embedded validation tables. The file is watched and hot-reloaded.
	TablesOverride string

	// TTL for cached catalog payloads. Default: 24h.
	TTL time.Duration

	// HTTPClient overrides the catalog transport (tests).
	HTTPClient catalog.HTTPDoer

	// Logger. Default: slog.Default().
	Logger *slog.Logger
}

// Pipeline is the recipe validation service: normalize, resolve,
// filter-validate, rule-check. Construct with New, release with Close.
//
// Validation itself is a pure function of the document and the current
// catalog snapshot; concurrent calls are independent.
type Pipeline struct {
	client    *catalog.Client
	registry  *catalog.Registry
	store     *catalog.Store
	tables    atomic.Pointer[Tables]
	logger    *slog.Logger
	metrics   *observability.Metrics
	stopWatch func()
}

// Result is the outcome of one validation call.
type Result struct {
	Recipe     datatypes.Recipe `json:"recipe"`
	Violations []Violation      `json:"violations"`
	Warnings   []Warning        `json:"warnings"`

	// Degraded is true when the catalog data backing this validation
	// was stale or missing.
	Degraded bool `json:"degraded"`
}

// New builds a Pipeline from configuration. No network I/O happens
// here; call Start to prefetch the catalog.
func New(config Config) (*Pipeline, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	tables, err := LoadTablesWithOverride(config.TablesOverride)
	if err != nil {
		return nil, err
	}

	var store *catalog.Store
	if config.CacheDir != "" {
		store, err = catalog.OpenStore(catalog.DefaultStoreConfig(config.CacheDir))
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
	}

	client := catalog.NewClient(catalog.ClientConfig{
		BaseURL:    config.BaseURL,
		APIKey:     config.APIKey,
		TTL:        config.TTL,
		HTTPClient: config.HTTPClient,
		Store:      store,
		Logger:     config.Logger,
	})
	client.Hydrate()

	p := &Pipeline{
		client:   client,
		registry: catalog.NewRegistry(),
		store:    store,
		logger:   config.Logger,
		metrics:  observability.Default(),
	}
	p.tables.Store(tables)

	if config.TablesOverride != "" {
		stop, err := WatchTables(config.TablesOverride, config.Logger, func(t *Tables) {
			p.tables.Store(t)
		})
		if err != nil {
			p.logger.Warn("tables override not watched", "error", err)
		} else {
			p.stopWatch = stop
		}
	}

	return p, nil
}

// Start prefetches the whole catalog so steady-state validation never
// blocks on network. Failure leaves the pipeline usable in degraded
// mode.
func (p *Pipeline) Start(ctx context.Context) error {
	return catalog.Prefetch(ctx, p.client, p.registry, p.logger)
}

// Close releases the table watcher and the persistent store.
func (p *Pipeline) Close() error {
	if p.stopWatch != nil {
		p.stopWatch()
		p.stopWatch = nil
	}
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Registry exposes the module registry (read-only use).
func (p *Pipeline) Registry() *catalog.Registry {
	return p.registry
}

// ValidateAndNormalize turns a raw generator document into a canonical,
// catalog-verified recipe. The only hard error is malformed JSON (or a
// completely unreachable, uncached catalog); every content problem is
// reported through violations and warnings.
func (p *Pipeline) ValidateAndNormalize(ctx context.Context, rawDocument []byte, goal string) (Result, error) {
	raw, err := datatypes.ParseRaw(rawDocument)
	if err != nil {
		return Result{}, err
	}

	tables := p.tables.Load()
	result := Result{Warnings: []Warning{}}

	result.Recipe = NewNormalizer(tables).Normalize(raw, goal)
	result.Degraded = p.ensureRegistry(ctx)

	filterValidator := NewFilterValidator(tables)
	for i := range result.Recipe.Steps {
		step := &result.Recipe.Steps[i]

		var parts []catalog.Part
		module, err := p.registry.ResolveModule(step.Module.Name)
		resolved := err == nil
		if resolved {
			parts = module.Parts
			step.Module.ID = module.ID
			step.Module.IsWebSource = module.HasPartType(catalog.PartWebSource)
			if step.Module.IsWebSource && len(step.SourceSelection) == 0 {
				step.SourceSelection = append([]string(nil), tables.DefaultSourcesFor(module.Title)...)
			}
		}

		cleaned, warnings := filterValidator.Validate(step.Module.Name, parts, resolved, step.Filters)
		step.Filters = cleaned
		for _, w := range warnings {
			w.Step = step.StepNumber
			result.Warnings = append(result.Warnings, w)
			p.metrics.ValidationWarnings.WithLabelValues(w.Kind).Inc()
		}
	}

	result.Violations = NewRuleValidator(tables, p.registry).Check(&result.Recipe)
	if err := result.Recipe.Validate(); err != nil {
		result.Violations = append(result.Violations, Violation{
			Kind:    ViolationSchemaInvalid,
			Message: err.Error(),
		})
	}
	for _, v := range result.Violations {
		p.metrics.RuleViolations.WithLabelValues(v.Kind).Inc()
	}

	return result, nil
}

// Export maps a validated recipe to KM24 API step payloads.
func (p *Pipeline) Export(recipe *datatypes.Recipe) ([]ExportStep, []Warning) {
	return NewExporter(p.registry).ExportAll(recipe)
}

// ForceRefresh bypasses the cache and repopulates the registry from the
// live catalog. Idempotent.
func (p *Pipeline) ForceRefresh(ctx context.Context) error {
	return p.registry.Refresh(ctx, p.client, true)
}

// ClearCache evicts everything, memory and disk; the next access is a
// cold fetch. Idempotent.
func (p *Pipeline) ClearCache() error {
	return p.client.ClearCache()
}

// HealthReport describes the operational state of the pipeline.
type HealthReport struct {
	Catalog    catalog.HealthStatus `json:"catalog"`
	Modules    int                  `json:"modules"`
	CacheStats catalog.CacheStats   `json:"cacheStats"`
}

// Health reports catalog reachability, registry size and cache
// counters. Never fails; a down API shows up as a degraded status.
func (p *Pipeline) Health(ctx context.Context) HealthReport {
	return HealthReport{
		Catalog:    p.client.Health(ctx),
		Modules:    p.registry.Len(),
		CacheStats: p.client.Cache().Stats(),
	}
}

// ensureRegistry populates the registry when empty. Returns true when
// the pipeline runs degraded (no catalog data at all, or stale data).
func (p *Pipeline) ensureRegistry(ctx context.Context) bool {
	if p.registry.Len() > 0 {
		return false
	}
	modules, degraded, err := p.client.FetchModulesBasic(ctx, false)
	if err != nil {
		p.logger.Warn("validating without catalog data", "error", err)
		return true
	}
	p.registry.Update(modules)
	return degraded
}
