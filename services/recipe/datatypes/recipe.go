// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the recipe document model.
//
// Two shapes live here. RawRecipe is the loose parsing boundary for
// LLM-produced JSON: every field optional, several spellings accepted,
// nothing trusted. Recipe is the strict canonical schema the rest of the
// pipeline operates on. The normalizer is the only code that converts
// one into the other; the loose shape never travels past it.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Notification is the canonical notification cadence.
type Notification string

const (
	NotificationInstant Notification = "instant"
	NotificationDaily   Notification = "daily"
	NotificationWeekly  Notification = "weekly"
)

// ModuleRef points a step at a KM24 module. ID is 0 until the registry
// has resolved the name.
type ModuleRef struct {
	ID          int    `json:"id"`
	Name        string `json:"name" validate:"required"`
	IsWebSource bool   `json:"isWebSource"`
}

// Filter is one named filter with its values. Filters are kept as an
// ordered slice, not a map: presentation order is part of the contract
// and value order within a filter is preserved from input.
type Filter struct {
	Name   string   `json:"name" validate:"required"`
	Values []string `json:"values"`
}

// Step is one unit of monitoring configuration, bound to one module.
type Step struct {
	StepNumber      int          `json:"stepNumber" validate:"required,min=1"`
	Title           string       `json:"title"`
	Type            string       `json:"type"`
	Module          ModuleRef    `json:"module" validate:"required"`
	Rationale       string       `json:"rationale,omitempty"`
	Filters         []Filter     `json:"filters" validate:"dive"`
	SearchString    string       `json:"searchString,omitempty"`
	Notification    Notification `json:"notification" validate:"oneof=instant daily weekly"`
	Delivery        string       `json:"delivery"`
	SourceSelection []string     `json:"sourceSelection"`
}

// FilterNamed reports whether the step carries a filter with the given
// name.
func (s Step) FilterNamed(name string) bool {
	for _, f := range s.Filters {
		if f.Name == name {
			return true
		}
	}
	return false
}

// CrossRef links two steps of a recipe.
type CrossRef struct {
	FromStep     int    `json:"fromStep" validate:"required,min=1"`
	ToStep       int    `json:"toStep" validate:"required,min=1"`
	Relationship string `json:"relationship,omitempty"`
	Rationale    string `json:"rationale,omitempty"`
}

// Overview summarizes the investigation.
type Overview struct {
	Title           string `json:"title"`
	StrategySummary string `json:"strategySummary"`
}

// Scope bounds the investigation. PrimaryFocus is synthesized from the
// stated goal when the document does not carry one.
type Scope struct {
	PrimaryFocus   string   `json:"primaryFocus"`
	SecondaryAreas []string `json:"secondaryAreas"`
}

// Recipe is the canonical, normalized investigation plan.
//
// Invariants (established by the normalizer, enforced by the rule
// validator): step numbers are exactly 1..N in order, and every cross
// reference names an existing step.
type Recipe struct {
	Overview              Overview   `json:"overview"`
	Scope                 Scope      `json:"scope"`
	Steps                 []Step     `json:"steps" validate:"dive"`
	CrossRefs             []CrossRef `json:"crossRefs" validate:"dive"`
	NextLevelQuestions    []string   `json:"nextLevelQuestions"`
	PotentialStoryAngles  []string   `json:"potentialStoryAngles"`
	Pitfalls              []string   `json:"pitfalls"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the canonical schema constraints (tag-level only; the
// cross-field business rules belong to the rule validator).
func (r *Recipe) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("recipe schema: %w", err)
	}
	return nil
}
