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

	"github.com/AleutianAI/vejviser/pkg/validation"
	"github.com/AleutianAI/vejviser/services/catalog"
	"github.com/AleutianAI/vejviser/services/recipe/datatypes"
)

// Violation kinds emitted by the rule validator.
const (
	ViolationStepsNotContiguous     = "step-numbers-not-contiguous"
	ViolationDanglingCrossRef       = "dangling-cross-reference"
	ViolationMissingSourceSelection = "missing-source-selection"
	ViolationInvalidSearchSyntax    = "invalid-search-syntax"
	ViolationMissingCoverageFilter  = "missing-coverage-filter"
	ViolationInvalidNotification    = "invalid-notification"
	ViolationTooFewSteps            = "too-few-steps"
	ViolationUnknownModule          = "unknown-module"
	ViolationSchemaInvalid          = "schema-invalid"
)

// minPipelineSteps is the smallest recipe worth activating: one
// discovery step, one follow step, one context step.
const minPipelineSteps = 3

// Violation is one structured business-rule finding. A recipe with any
// violation is not acceptable; nothing is silently fixed at this stage.
type Violation struct {
	Kind    string `json:"kind"`
	Step    int    `json:"step,omitempty"`
	Message string `json:"message"`
}

// ModuleResolver is the registry surface the rule validator needs.
type ModuleResolver interface {
	ResolveModule(name string) (catalog.Module, error)
}

// coverageFilters are the filter names that satisfy the coverage rule:
// a step must narrow by geography, industry or amount unless its module
// type is exempt.
var coverageFilters = []string{"geografi", "branche", "beløbsgrænse"}

// RuleValidator enforces the business rules over a normalized recipe.
// It never mutates the recipe.
type RuleValidator struct {
	tables   *Tables
	resolver ModuleResolver
}

// NewRuleValidator creates a RuleValidator. resolver may be nil, in
// which case module-dependent rules (unknown module, coverage
// exemptions) degrade to flag-based checks only.
func NewRuleValidator(tables *Tables, resolver ModuleResolver) *RuleValidator {
	return &RuleValidator{tables: tables, resolver: resolver}
}

// Check returns every rule violation in the recipe. Empty means
// accepted.
func (v *RuleValidator) Check(recipe *datatypes.Recipe) []Violation {
	violations := []Violation{}

	if len(recipe.Steps) < minPipelineSteps {
		violations = append(violations, Violation{
			Kind:    ViolationTooFewSteps,
			Message: fmt.Sprintf("pipeline has %d steps, needs at least %d", len(recipe.Steps), minPipelineSteps),
		})
	}

	violations = append(violations, v.checkContiguity(recipe)...)
	violations = append(violations, v.checkCrossRefs(recipe)...)

	for _, step := range recipe.Steps {
		violations = append(violations, v.checkStep(step)...)
	}

	return violations
}

func (v *RuleValidator) checkContiguity(recipe *datatypes.Recipe) []Violation {
	var violations []Violation
	for i, step := range recipe.Steps {
		if step.StepNumber != i+1 {
			violations = append(violations, Violation{
				Kind:    ViolationStepsNotContiguous,
				Step:    step.StepNumber,
				Message: fmt.Sprintf("step at position %d is numbered %d, expected %d", i+1, step.StepNumber, i+1),
			})
		}
	}
	return violations
}

func (v *RuleValidator) checkCrossRefs(recipe *datatypes.Recipe) []Violation {
	existing := make(map[int]struct{}, len(recipe.Steps))
	for _, step := range recipe.Steps {
		existing[step.StepNumber] = struct{}{}
	}

	var violations []Violation
	for _, ref := range recipe.CrossRefs {
		for _, n := range []int{ref.FromStep, ref.ToStep} {
			if _, ok := existing[n]; !ok {
				violations = append(violations, Violation{
					Kind:    ViolationDanglingCrossRef,
					Step:    n,
					Message: fmt.Sprintf("cross-reference %d -> %d names step %d, which does not exist", ref.FromStep, ref.ToStep, n),
				})
			}
		}
	}
	return violations
}

func (v *RuleValidator) checkStep(step datatypes.Step) []Violation {
	var violations []Violation

	module, resolved := v.resolve(step.Module.Name)
	if !resolved && v.resolver != nil {
		violations = append(violations, Violation{
			Kind:    ViolationUnknownModule,
			Step:    step.StepNumber,
			Message: fmt.Sprintf("module %q does not exist in the KM24 catalog", step.Module.Name),
		})
	}

	isWebSource := step.Module.IsWebSource || (resolved && module.HasPartType(catalog.PartWebSource))
	if isWebSource && len(step.SourceSelection) == 0 {
		violations = append(violations, Violation{
			Kind:    ViolationMissingSourceSelection,
			Step:    step.StepNumber,
			Message: fmt.Sprintf("web source module %q requires a source selection", step.Module.Name),
		})
	}

	for _, err := range validation.ValidateSearchString(step.SearchString) {
		violations = append(violations, Violation{
			Kind:    ViolationInvalidSearchSyntax,
			Step:    step.StepNumber,
			Message: err.Error(),
		})
	}

	switch step.Notification {
	case datatypes.NotificationInstant, datatypes.NotificationDaily, datatypes.NotificationWeekly:
	default:
		violations = append(violations, Violation{
			Kind:    ViolationInvalidNotification,
			Step:    step.StepNumber,
			Message: fmt.Sprintf("notification %q is not one of instant, daily, weekly", step.Notification),
		})
	}

	if !v.coverageExempt(step, module, resolved) && !hasCoverageFilter(step) {
		violations = append(violations, Violation{
			Kind:    ViolationMissingCoverageFilter,
			Step:    step.StepNumber,
			Message: fmt.Sprintf("step %d needs a geography, industry or amount filter to bound its hit volume", step.StepNumber),
		})
	}

	return violations
}

func (v *RuleValidator) resolve(name string) (catalog.Module, bool) {
	if v.resolver == nil {
		return catalog.Module{}, false
	}
	module, err := v.resolver.ResolveModule(name)
	if err != nil {
		return catalog.Module{}, false
	}
	return module, true
}

// coverageExempt reports whether the step's module type frees it from
// the coverage rule. Web-source modules are bounded by their source
// selection, person modules by the monitored person.
func (v *RuleValidator) coverageExempt(step datatypes.Step, module catalog.Module, resolved bool) bool {
	if step.Module.IsWebSource {
		return true
	}
	if !resolved {
		// An unresolved module already has its own violation; piling a
		// coverage violation on top would be noise.
		return v.resolver != nil
	}
	for _, part := range module.Parts {
		if v.tables.CoverageExempt(string(part.Part)) {
			return true
		}
	}
	return false
}

func hasCoverageFilter(step datatypes.Step) bool {
	for _, name := range coverageFilters {
		if step.FilterNamed(name) {
			return true
		}
	}
	return false
}
