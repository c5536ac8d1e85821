// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recipe normalizes and validates LLM-produced investigation
// plans against live KM24 catalog metadata.
package recipe

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var embeddedTables []byte

// Tables holds the data-driven parts of validation: naming, aliases,
// blacklist, synthetic allowances and defaults. Keeping them as data
// means drift in the catalog is handled by editing a file, not code.
//
// A Tables value is immutable after Load; the watcher swaps whole
// instances through its callback.
type Tables struct {
	// NotificationMap folds localized notification terms to the
	// canonical enum. Keys lowercase.
	NotificationMap map[string]string `yaml:"notification_map"`

	// CanonicalFilterNames maps a part type to its canonical filter name.
	CanonicalFilterNames map[string]string `yaml:"canonical_filter_names"`

	// FilterAliases folds synonymous filter names to canonical ones.
	// Keys lowercase.
	FilterAliases map[string]string `yaml:"filter_aliases"`

	// FilterBlacklist lists names dropped unconditionally.
	FilterBlacklist []string `yaml:"filter_blacklist"`

	// PeriodeModules lists module titles that accept the synthetic
	// "periode" filter.
	PeriodeModules []string `yaml:"periode_modules"`

	// DefaultSources maps a web-source module title to the sources
	// injected when a step arrives without a selection.
	DefaultSources map[string][]string `yaml:"default_sources"`

	// CoverageExemptPartTypes lists part types whose modules are exempt
	// from the coverage-filter rule.
	CoverageExemptPartTypes []string `yaml:"coverage_exempt_part_types"`

	blacklistSet map[string]struct{}
	periodeSet   map[string]struct{}
	exemptSet    map[string]struct{}
}

// LoadTables parses the embedded table file.
func LoadTables() (*Tables, error) {
	return parseTables(embeddedTables)
}

// LoadTablesWithOverride parses the embedded tables and then overlays
// any table present in the override file. Tables absent from the
// override keep their embedded values.
func LoadTablesWithOverride(path string) (*Tables, error) {
	tables, err := LoadTables()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read tables override %s: %w", path, err)
	}
	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse tables override %s: %w", path, err)
	}

	if override.NotificationMap != nil {
		tables.NotificationMap = lowerKeys(override.NotificationMap)
	}
	if override.CanonicalFilterNames != nil {
		tables.CanonicalFilterNames = override.CanonicalFilterNames
	}
	if override.FilterAliases != nil {
		tables.FilterAliases = lowerKeys(override.FilterAliases)
	}
	if override.FilterBlacklist != nil {
		tables.FilterBlacklist = override.FilterBlacklist
	}
	if override.PeriodeModules != nil {
		tables.PeriodeModules = override.PeriodeModules
	}
	if override.DefaultSources != nil {
		tables.DefaultSources = override.DefaultSources
	}
	if override.CoverageExemptPartTypes != nil {
		tables.CoverageExemptPartTypes = override.CoverageExemptPartTypes
	}
	tables.buildSets()
	return tables, nil
}

func parseTables(data []byte) (*Tables, error) {
	var tables Tables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parse tables: %w", err)
	}
	tables.NotificationMap = lowerKeys(tables.NotificationMap)
	tables.FilterAliases = lowerKeys(tables.FilterAliases)
	tables.buildSets()
	return &tables, nil
}

func (t *Tables) buildSets() {
	t.blacklistSet = make(map[string]struct{}, len(t.FilterBlacklist))
	for _, name := range t.FilterBlacklist {
		t.blacklistSet[strings.ToLower(name)] = struct{}{}
	}
	t.periodeSet = make(map[string]struct{}, len(t.PeriodeModules))
	for _, title := range t.PeriodeModules {
		t.periodeSet[strings.ToLower(title)] = struct{}{}
	}
	t.exemptSet = make(map[string]struct{}, len(t.CoverageExemptPartTypes))
	for _, partType := range t.CoverageExemptPartTypes {
		t.exemptSet[strings.ToLower(partType)] = struct{}{}
	}
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Blacklisted reports whether the filter name is on the blacklist.
func (t *Tables) Blacklisted(name string) bool {
	_, ok := t.blacklistSet[strings.ToLower(name)]
	return ok
}

// CanonicalName folds a filter name through the alias table. Unknown
// names come back lowercased but otherwise untouched.
func (t *Tables) CanonicalName(name string) string {
	folded := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := t.FilterAliases[folded]; ok {
		return canonical
	}
	return folded
}

// AllowsPeriode reports whether the module title accepts the synthetic
// periode filter.
func (t *Tables) AllowsPeriode(moduleTitle string) bool {
	_, ok := t.periodeSet[strings.ToLower(moduleTitle)]
	return ok
}

// CoverageExempt reports whether a module with the given part type is
// exempt from the coverage-filter rule.
func (t *Tables) CoverageExempt(partType string) bool {
	_, ok := t.exemptSet[strings.ToLower(partType)]
	return ok
}

// NormalizeNotification folds a raw notification value to the canonical
// enum, defaulting to daily.
func (t *Tables) NormalizeNotification(value string) string {
	if canonical, ok := t.NotificationMap[strings.ToLower(strings.TrimSpace(value))]; ok {
		return canonical
	}
	return "daily"
}

// DefaultSourcesFor returns the default source selection for a
// web-source module title, or nil for unknown modules.
func (t *Tables) DefaultSourcesFor(moduleTitle string) []string {
	for title, sources := range t.DefaultSources {
		if strings.EqualFold(title, moduleTitle) {
			return sources
		}
	}
	return nil
}

// WatchTables reloads the override file on change and hands the freshly
// merged tables to onReload. Returns a stop function. Errors during a
// reload keep the previous tables and are logged.
func WatchTables(path string, logger *slog.Logger, onReload func(*Tables)) (stop func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create tables watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				tables, err := LoadTablesWithOverride(path)
				if err != nil {
					logger.Warn("tables reload failed, keeping previous", "path", path, "error", err)
					continue
				}
				logger.Info("validation tables reloaded", "path", path)
				onReload(tables)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("tables watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
