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

// defaultLookbackDays is how far back a newly created monitoring step
// looks on first run.
const defaultLookbackDays = 30

// ExportPart is one filter bound to its numeric module part id, the
// shape the KM24 step API expects.
type ExportPart struct {
	ModulePartID int      `json:"modulePartId"`
	Values       []string `json:"values"`
}

// ExportStep is an API-ready monitoring step payload.
type ExportStep struct {
	Name           string       `json:"name"`
	ModuleID       int          `json:"moduleId"`
	LookbackDays   int          `json:"lookbackDays"`
	OnlyActive     bool         `json:"onlyActive"`
	OnlySubscribed bool         `json:"onlySubscribed"`
	Parts          []ExportPart `json:"parts"`
}

// Exporter turns validated recipe steps into KM24 API step payloads by
// mapping cleaned filter names back to numeric module part ids.
type Exporter struct {
	resolver ModuleResolver
}

// NewExporter creates an Exporter over the given registry surface.
func NewExporter(resolver ModuleResolver) *Exporter {
	return &Exporter{resolver: resolver}
}

// ExportStep maps one step. Filters whose name matches no part of the
// module (exact first, then case-insensitive) are skipped with a
// warning; synthetic filters such as periode have no part id by nature
// and are skipped silently.
func (e *Exporter) ExportStep(step datatypes.Step) (ExportStep, []Warning, error) {
	module, err := e.resolver.ResolveModule(step.Module.Name)
	if err != nil {
		return ExportStep{}, nil, fmt.Errorf("export step %d: %w", step.StepNumber, err)
	}

	byName := make(map[string]int, len(module.Parts)*2)
	for _, part := range module.Parts {
		byName[part.Name] = part.ID
		byName[strings.ToLower(part.Name)] = part.ID
	}
	byCanonical := canonicalPartIndex(module.Parts)

	name := step.Title
	if name == "" {
		name = fmt.Sprintf("Step for module %d", module.ID)
	}

	out := ExportStep{
		Name:         name,
		ModuleID:     module.ID,
		LookbackDays: defaultLookbackDays,
		Parts:        []ExportPart{},
	}

	var warnings []Warning
	for _, f := range step.Filters {
		if len(f.Values) == 0 {
			continue
		}
		partID, ok := byName[f.Name]
		if !ok {
			partID, ok = byName[strings.ToLower(f.Name)]
		}
		if !ok {
			partID, ok = byCanonical[strings.ToLower(f.Name)]
		}
		if !ok {
			if f.Name == "periode" {
				continue
			}
			warnings = append(warnings, Warning{
				Kind:    WarnUnknownFilter,
				Step:    step.StepNumber,
				Module:  module.Title,
				Filter:  f.Name,
				Message: fmt.Sprintf("filter %q has no part id on module %q, left out of the export", f.Name, module.Title),
			})
			continue
		}
		out.Parts = append(out.Parts, ExportPart{ModulePartID: partID, Values: f.Values})
	}

	return out, warnings, nil
}

// ExportAll maps every step of a recipe. Steps whose module cannot be
// resolved are skipped with a warning rather than failing the batch.
func (e *Exporter) ExportAll(recipe *datatypes.Recipe) ([]ExportStep, []Warning) {
	steps := make([]ExportStep, 0, len(recipe.Steps))
	var warnings []Warning

	for _, step := range recipe.Steps {
		exported, stepWarnings, err := e.ExportStep(step)
		if err != nil {
			warnings = append(warnings, Warning{
				Kind:    WarnNoMetadata,
				Step:    step.StepNumber,
				Module:  step.Module.Name,
				Message: fmt.Sprintf("step %d skipped: %v", step.StepNumber, err),
			})
			continue
		}
		warnings = append(warnings, stepWarnings...)
		steps = append(steps, exported)
	}
	return steps, warnings
}

// canonicalPartIndex maps canonical filter names (the names the filter
// validator rewrites to) back to part ids, so a cleaned "geografi"
// finds the module's municipality part.
func canonicalPartIndex(parts []catalog.Part) map[string]int {
	// Fixed mapping, independent of any table override: the export
	// contract with the KM24 API does not change per deployment.
	typeNames := map[catalog.PartType]string{
		catalog.PartMunicipality:    "geografi",
		catalog.PartIndustry:        "branche",
		catalog.PartCompany:         "virksomhed",
		catalog.PartAmountSelection: "beløbsgrænse",
		catalog.PartWebSource:       "webkilde",
		catalog.PartSearchString:    "søgeord",
	}
	index := make(map[string]int, len(parts))
	for _, part := range parts {
		if name, ok := typeNames[part.Part]; ok {
			if _, exists := index[name]; !exists {
				index[name] = part.ID
			}
		}
	}
	return index
}
