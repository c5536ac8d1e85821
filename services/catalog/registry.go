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
	"fmt"
	"strings"
	"sync/atomic"
)

// DefaultModuleAliases maps known off-catalog module names to catalog
// titles. Keys are lowercase. The table absorbs common naming drift
// between prose and the catalog; lookups are exact-match only, never
// fuzzy.
var DefaultModuleAliases = map[string]string{
	"arbejdstilsynet":  "Arbejdstilsyn",
	"tinglysninger":    "Tinglysning",
	"registreringer":   "Registrering",
	"kapitalændringer": "Kapitalændring",
	"lokal politik":    "Lokalpolitik",
	"danske-medier":    "Danske medier",
}

// snapshot is one immutable view of the module catalog.
type snapshot struct {
	modules  []Module
	byID     map[int]Module
	byTitle  map[string]Module
	byFolded map[string]Module
}

// Registry resolves module names and ids against the current catalog
// snapshot.
//
// Snapshots are immutable and swapped atomically on refresh, so readers
// never observe a partially updated catalog and lookups take no locks.
type Registry struct {
	current atomic.Pointer[snapshot]
	aliases map[string]string
}

// NewRegistry creates an empty registry using DefaultModuleAliases.
// Lookups against an empty registry report ErrModuleNotFound.
func NewRegistry() *Registry {
	return NewRegistryWithAliases(DefaultModuleAliases)
}

// NewRegistryWithAliases creates an empty registry with a custom alias
// table. Alias keys must be lowercase.
func NewRegistryWithAliases(aliases map[string]string) *Registry {
	r := &Registry{aliases: aliases}
	r.Update(nil)
	return r
}

// Update replaces the catalog snapshot with the given module list.
func (r *Registry) Update(modules []Module) {
	snap := &snapshot{
		modules:  modules,
		byID:     make(map[int]Module, len(modules)),
		byTitle:  make(map[string]Module, len(modules)),
		byFolded: make(map[string]Module, len(modules)),
	}
	for _, m := range modules {
		snap.byID[m.ID] = m
		snap.byTitle[m.Title] = m
		snap.byFolded[strings.ToLower(m.Title)] = m
	}
	r.current.Store(snap)
}

// Refresh rebuilds the snapshot from the client's module list.
func (r *Registry) Refresh(ctx context.Context, client *Client, forceRefresh bool) error {
	modules, _, err := client.FetchModulesBasic(ctx, forceRefresh)
	if err != nil {
		return fmt.Errorf("refresh registry: %w", err)
	}
	r.Update(modules)
	return nil
}

// Len returns the number of modules in the current snapshot.
func (r *Registry) Len() int {
	return len(r.current.Load().modules)
}

// Modules returns the modules of the current snapshot. Callers must not
// modify the returned slice.
func (r *Registry) Modules() []Module {
	return r.current.Load().modules
}

// ResolveModule resolves a module name to the module itself.
//
// Resolution is deterministic and tiered: exact title match, then
// case-insensitive match, then the static alias table. No fuzzy
// matching; an unresolvable name is a finding for the validator to
// report, not something to guess around.
func (r *Registry) ResolveModule(name string) (Module, error) {
	snap := r.current.Load()
	name = strings.TrimSpace(name)
	if name == "" {
		return Module{}, fmt.Errorf("%w: empty module name", ErrModuleNotFound)
	}

	if m, ok := snap.byTitle[name]; ok {
		return m, nil
	}
	folded := strings.ToLower(name)
	if m, ok := snap.byFolded[folded]; ok {
		return m, nil
	}
	if canonical, ok := r.aliases[folded]; ok {
		if m, ok := snap.byFolded[strings.ToLower(canonical)]; ok {
			return m, nil
		}
	}
	return Module{}, fmt.Errorf("%w: %q", ErrModuleNotFound, name)
}

// ResolveModuleID resolves a module name to its catalog id.
func (r *Registry) ResolveModuleID(name string) (int, error) {
	m, err := r.ResolveModule(name)
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

// ModuleByID returns the module with the given id.
func (r *Registry) ModuleByID(id int) (Module, error) {
	if m, ok := r.current.Load().byID[id]; ok {
		return m, nil
	}
	return Module{}, fmt.Errorf("%w: id %d", ErrModuleNotFound, id)
}

// PartsForModule returns the parts of the module with the given id.
func (r *Registry) PartsForModule(id int) ([]Part, error) {
	m, err := r.ModuleByID(id)
	if err != nil {
		return nil, err
	}
	return m.Parts, nil
}
