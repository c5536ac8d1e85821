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
	"strings"

	"github.com/AleutianAI/vejviser/services/recipe/datatypes"
)

// primaryFocusLimit caps the synthesized scope focus line.
const primaryFocusLimit = 100

// Normalizer coerces the loose document shape into the canonical Recipe.
//
// Normalization never fails and never rejects: missing sections become
// empty defaults, steps are renumbered in input order, enumerated values
// are folded through the tables. Anything that is a matter of judgment
// rather than shape (unknown modules, missing sources, bad syntax) is
// left for the validators.
type Normalizer struct {
	tables *Tables
}

// NewNormalizer creates a Normalizer over the given tables.
func NewNormalizer(tables *Tables) *Normalizer {
	return &Normalizer{tables: tables}
}

// Normalize converts a raw document into the canonical schema. goal is
// the user's stated investigation goal, used to synthesize missing
// scope/overview fields.
//
// Idempotent: a document whose values are already canonical comes out
// unchanged.
func (n *Normalizer) Normalize(raw datatypes.RawRecipe, goal string) datatypes.Recipe {
	recipe := datatypes.Recipe{
		Overview:             n.normalizeOverview(raw, goal),
		Scope:                n.normalizeScope(raw, goal),
		NextLevelQuestions:   emptyIfNil(raw.NextLevelQuestions),
		PotentialStoryAngles: emptyIfNil(raw.PotentialStoryAngles),
		Pitfalls:             emptyIfNil(raw.Pitfalls),
	}

	rawSteps := raw.AllSteps()
	recipe.Steps = make([]datatypes.Step, 0, len(rawSteps))
	for i, rawStep := range rawSteps {
		// Renumber 1..N in input order; whatever markers the source
		// carried (duplicates, strings, garbage) are discarded.
		recipe.Steps = append(recipe.Steps, n.normalizeStep(rawStep, i+1))
	}

	recipe.CrossRefs = make([]datatypes.CrossRef, 0, len(raw.CrossRefs))
	for _, ref := range raw.CrossRefs {
		if !ref.FromStep.Valid || !ref.ToStep.Valid {
			continue
		}
		recipe.CrossRefs = append(recipe.CrossRefs, datatypes.CrossRef{
			FromStep:     ref.FromStep.Value,
			ToStep:       ref.ToStep.Value,
			Relationship: ref.Relationship,
			Rationale:    ref.Rationale,
		})
	}

	return recipe
}

func (n *Normalizer) normalizeOverview(raw datatypes.RawRecipe, goal string) datatypes.Overview {
	overview := datatypes.Overview{
		Title:           strings.TrimSpace(raw.Overview.Title),
		StrategySummary: strings.TrimSpace(raw.Overview.StrategySummary),
	}
	if overview.Title == "" {
		overview.Title = strings.TrimSpace(raw.Title)
	}
	if overview.Title == "" {
		overview.Title = truncateFocus(goal)
	}
	return overview
}

func (n *Normalizer) normalizeScope(raw datatypes.RawRecipe, goal string) datatypes.Scope {
	scope := datatypes.Scope{
		PrimaryFocus:   strings.TrimSpace(raw.Scope.PrimaryFocus),
		SecondaryAreas: emptyIfNil(raw.Scope.SecondaryAreas),
	}
	if scope.PrimaryFocus == "" {
		scope.PrimaryFocus = truncateFocus(goal)
	}
	return scope
}

func (n *Normalizer) normalizeStep(raw datatypes.RawStep, number int) datatypes.Step {
	step := datatypes.Step{
		StepNumber: number,
		Title:      strings.TrimSpace(raw.Title),
		Type:       strings.TrimSpace(raw.Type),
		Rationale:  strings.TrimSpace(raw.Rationale),
		Module: datatypes.ModuleRef{
			ID:          raw.Module.ID.Value,
			Name:        strings.TrimSpace(raw.Module.Name),
			IsWebSource: raw.Module.IsWebSource,
		},
		Notification: n.normalizeNotification(raw.NotificationValues()),
		Delivery:     strings.TrimSpace(raw.Delivery),
	}
	if step.Delivery == "" {
		step.Delivery = "email"
	}

	step.SearchString = strings.TrimSpace(raw.SearchString)
	if step.SearchString == "" {
		step.SearchString = strings.TrimSpace(raw.Details.SearchString)
	}

	// Filters precede the search string in the canonical form; the
	// ordered slice plus the dedicated SearchString field make that
	// structural rather than a convention.
	step.Filters = make([]datatypes.Filter, 0, len(raw.Filters.Items))
	for _, f := range raw.Filters.Items {
		step.Filters = append(step.Filters, datatypes.Filter{
			Name:   strings.TrimSpace(f.Name),
			Values: append([]string(nil), f.Values...),
		})
	}

	step.SourceSelection = raw.SourceSelection
	if len(step.SourceSelection) == 0 {
		step.SourceSelection = raw.Details.SourceSelection
	}
	if len(step.SourceSelection) == 0 && step.Module.IsWebSource {
		step.SourceSelection = append([]string(nil), n.tables.DefaultSourcesFor(step.Module.Name)...)
	}
	if step.SourceSelection == nil {
		step.SourceSelection = []string{}
	}

	return step
}

// normalizeNotification folds a single notification value through the
// tables. A step carrying several values cannot be folded to one
// cadence; the values are joined verbatim so the rule validator reports
// the step instead of a default silently masking it.
func (n *Normalizer) normalizeNotification(values []string) datatypes.Notification {
	switch len(values) {
	case 0:
		return datatypes.Notification(n.tables.NormalizeNotification(""))
	case 1:
		return datatypes.Notification(n.tables.NormalizeNotification(values[0]))
	default:
		return datatypes.Notification(strings.Join(values, ", "))
	}
}

// truncateFocus derives the one-line focus summary from the goal.
func truncateFocus(goal string) string {
	goal = strings.TrimSpace(goal)
	runes := []rune(goal)
	if len(runes) <= primaryFocusLimit {
		return goal
	}
	return string(runes[:primaryFocusLimit]) + "..."
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
