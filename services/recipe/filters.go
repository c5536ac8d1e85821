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
	"fmt"
	"strings"

	"github.com/AleutianAI/vejviser/services/catalog"
	"github.com/AleutianAI/vejviser/services/recipe/datatypes"
)

// Warning kinds emitted by the filter validator.
const (
	WarnBlacklisted   = "blacklisted-filter"
	WarnDuplicate     = "duplicate-filter"
	WarnUnknownFilter = "unknown-filter"
	WarnNoMetadata    = "module-metadata-missing"
)

// Warning is one non-fatal finding from filter validation. Warnings are
// data, not errors: the recipe stays usable, minus the dropped filter.
type Warning struct {
	Kind    string `json:"kind"`
	Step    int    `json:"step,omitempty"`
	Module  string `json:"module,omitempty"`
	Filter  string `json:"filter,omitempty"`
	Message string `json:"message"`
}

// FilterValidator checks a step's filters against a module's parts.
//
// The validator is fail-closed: a filter name survives only if the
// module's catalog metadata (or a synthetic allowance) vouches for it.
// When metadata is missing entirely, effectively everything module
// specific is rejected. It never raises an error and never invents a
// filter; it only drops and renames (alias folding), preserving value
// order.
type FilterValidator struct {
	tables *Tables
}

// NewFilterValidator creates a FilterValidator over the given tables.
func NewFilterValidator(tables *Tables) *FilterValidator {
	return &FilterValidator{tables: tables}
}

// Validate runs the five-pass pipeline over one step's filters.
// parts is the module's part list from the catalog; haveMetadata reports
// whether the catalog vouched for the module at all. A resolved module
// with zero parts is not the same as missing metadata, so the two travel
// separately. Without metadata only synthetic allowances apply.
//
// Deterministic: same snapshot, same input, same output.
func (v *FilterValidator) Validate(moduleTitle string, parts []catalog.Part, haveMetadata bool, filters []datatypes.Filter) ([]datatypes.Filter, []Warning) {
	warnings := []Warning{}

	if !haveMetadata {
		warnings = append(warnings, Warning{
			Kind:    WarnNoMetadata,
			Module:  moduleTitle,
			Message: fmt.Sprintf("no catalog metadata for module %q, module-specific filters cannot be verified", moduleTitle),
		})
	}

	// Pass 1: blacklist.
	kept := make([]datatypes.Filter, 0, len(filters))
	for _, f := range filters {
		if v.tables.Blacklisted(f.Name) {
			warnings = append(warnings, blacklistWarning(moduleTitle, f.Name))
			continue
		}
		kept = append(kept, f)
	}

	// Pass 2: whitelist construction from the module's parts.
	whitelist := v.buildWhitelist(moduleTitle, parts)

	// Pass 3: alias folding, dropping later duplicates.
	kept, warnings = v.foldAliases(moduleTitle, kept, warnings)

	// Pass 4: whitelist comparison.
	cleaned := make([]datatypes.Filter, 0, len(kept))
	for _, f := range kept {
		if _, ok := whitelist[f.Name]; !ok {
			warnings = append(warnings, Warning{
				Kind:    WarnUnknownFilter,
				Module:  moduleTitle,
				Filter:  f.Name,
				Message: fmt.Sprintf("filter %q is not available on module %q", f.Name, moduleTitle),
			})
			continue
		}
		cleaned = append(cleaned, f)
	}

	// Pass 5: stateless resweep of passes 1 and 3. Dropping filters in
	// pass 4 can surface a blacklist hit or duplicate that was shadowed
	// earlier in the same step.
	final := make([]datatypes.Filter, 0, len(cleaned))
	for _, f := range cleaned {
		if v.tables.Blacklisted(f.Name) {
			warnings = append(warnings, blacklistWarning(moduleTitle, f.Name))
			continue
		}
		final = append(final, f)
	}
	final, warnings = v.foldAliases(moduleTitle, final, warnings)

	return final, warnings
}

// buildWhitelist maps the module's parts to the canonical filter names a
// step may use. Generic-value parts are whitelisted under their own
// name; everything else goes through the type table. Synthetic
// allowances are added regardless of parts.
func (v *FilterValidator) buildWhitelist(moduleTitle string, parts []catalog.Part) map[string]struct{} {
	whitelist := make(map[string]struct{}, len(parts)+1)
	for _, part := range parts {
		if part.Part == catalog.PartGenericValue {
			if name := strings.ToLower(strings.TrimSpace(part.Name)); name != "" {
				whitelist[name] = struct{}{}
			}
			continue
		}
		if canonical, ok := v.tables.CanonicalFilterNames[string(part.Part)]; ok {
			whitelist[canonical] = struct{}{}
		}
	}
	if v.tables.AllowsPeriode(moduleTitle) {
		whitelist["periode"] = struct{}{}
	}
	return whitelist
}

// foldAliases rewrites filter names to their canonical form and drops
// later filters that collide with an earlier canonical name. The first
// occurrence in input order wins.
func (v *FilterValidator) foldAliases(moduleTitle string, filters []datatypes.Filter, warnings []Warning) ([]datatypes.Filter, []Warning) {
	seen := make(map[string]struct{}, len(filters))
	folded := make([]datatypes.Filter, 0, len(filters))
	for _, f := range filters {
		canonical := v.tables.CanonicalName(f.Name)
		if _, dup := seen[canonical]; dup {
			warnings = append(warnings, Warning{
				Kind:    WarnDuplicate,
				Module:  moduleTitle,
				Filter:  f.Name,
				Message: fmt.Sprintf("filter %q folds to %q, which is already present; dropped as duplicate", f.Name, canonical),
			})
			continue
		}
		seen[canonical] = struct{}{}
		folded = append(folded, datatypes.Filter{Name: canonical, Values: f.Values})
	}
	return folded, warnings
}

func blacklistWarning(moduleTitle, filter string) Warning {
	return Warning{
		Kind:    WarnBlacklisted,
		Module:  moduleTitle,
		Filter:  filter,
		Message: fmt.Sprintf("filter %q does not exist in the KM24 catalog and was removed", filter),
	}
}
