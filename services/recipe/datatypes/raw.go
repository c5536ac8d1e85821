// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// RawRecipe is the loose parsing boundary for generator output. Every
// field is optional and several spellings are accepted; the normalizer
// turns this into a Recipe. Object keys are folded from camelCase to
// snake_case before decoding, so the canonical Recipe JSON re-parses
// the same way as generator output and re-normalizing is a no-op.
type RawRecipe struct {
	Title                string        `json:"title"`
	Overview             RawOverview   `json:"overview"`
	Scope                RawScope      `json:"scope"`
	Steps                []RawStep     `json:"steps"`
	InvestigationSteps   []RawStep     `json:"investigation_steps"`
	CrossRefs            []RawCrossRef `json:"cross_refs"`
	NextLevelQuestions   FlexStrings   `json:"next_level_questions"`
	PotentialStoryAngles FlexStrings   `json:"potential_story_angles"`
	Pitfalls             FlexStrings   `json:"pitfalls"`
}

func (r *RawRecipe) UnmarshalJSON(b []byte) error {
	type plain RawRecipe
	var p plain
	if err := decodeLoose(b, &p); err != nil {
		return err
	}
	*r = RawRecipe(p)
	return nil
}

// AllSteps returns the step list regardless of which key carried it.
// "steps" wins when both are present.
func (r RawRecipe) AllSteps() []RawStep {
	if len(r.Steps) > 0 {
		return r.Steps
	}
	return r.InvestigationSteps
}

// RawOverview tolerates both an object and a bare string.
type RawOverview struct {
	Title           string `json:"title"`
	StrategySummary string `json:"strategy_summary"`
}

func (o *RawOverview) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		o.StrategySummary = s
		return nil
	}
	type plain RawOverview
	var p plain
	if err := decodeLoose(b, &p); err != nil {
		return fmt.Errorf("overview: %w", err)
	}
	*o = RawOverview(p)
	return nil
}

// RawScope is the loose scope section.
type RawScope struct {
	PrimaryFocus   string      `json:"primary_focus"`
	SecondaryAreas FlexStrings `json:"secondary_areas"`
}

func (s *RawScope) UnmarshalJSON(b []byte) error {
	type plain RawScope
	var p plain
	if err := decodeLoose(b, &p); err != nil {
		return fmt.Errorf("scope: %w", err)
	}
	*s = RawScope(p)
	return nil
}

// RawCrossRef is the loose cross-reference shape.
type RawCrossRef struct {
	FromStep FlexInt `json:"from_step"`
	ToStep   FlexInt `json:"to_step"`

	Relationship string `json:"relationship"`
	Rationale    string `json:"rationale"`
}

func (c *RawCrossRef) UnmarshalJSON(b []byte) error {
	type plain RawCrossRef
	var p plain
	if err := decodeLoose(b, &p); err != nil {
		return fmt.Errorf("cross_ref: %w", err)
	}
	*c = RawCrossRef(p)
	return nil
}

// RawStep is one loose step. The step marker may arrive as "step" or
// "step_number", as a number or a string; the notification may live at
// the top level or under details.recommended_notification.
type RawStep struct {
	Step       FlexInt `json:"step"`
	StepNumber FlexInt `json:"step_number"`

	Title        string         `json:"title"`
	Type         string         `json:"type"`
	Module       RawModule      `json:"module"`
	Rationale    string         `json:"rationale"`
	SearchString string         `json:"search_string"`
	Filters      RawFilters     `json:"filters"`
	Notification FlexStrings    `json:"notification"`
	Details      RawStepDetails `json:"details"`

	SourceSelection FlexStrings `json:"source_selection"`
	Delivery        string      `json:"delivery"`
}

func (s *RawStep) UnmarshalJSON(b []byte) error {
	type plain RawStep
	var p plain
	if err := decodeLoose(b, &p); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	*s = RawStep(p)
	return nil
}

// NotificationValues returns every notification value the step carried,
// preferring the top-level field over details. A well-formed step has at
// most one; extra values are kept so the rule validator can report them.
func (s RawStep) NotificationValues() []string {
	if len(s.Notification) > 0 {
		return s.Notification
	}
	if s.Details.RecommendedNotification != "" {
		return []string{s.Details.RecommendedNotification}
	}
	return nil
}

// RawStepDetails holds the nested detail fields some generators emit.
type RawStepDetails struct {
	RecommendedNotification string      `json:"recommended_notification"`
	SearchString            string      `json:"search_string"`
	SourceSelection         FlexStrings `json:"source_selection"`
}

// RawModule tolerates both a bare module name and an object reference.
type RawModule struct {
	ID          FlexInt `json:"id"`
	Name        string  `json:"name"`
	IsWebSource bool    `json:"is_web_source"`
}

func (m *RawModule) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		m.Name = s
		return nil
	}
	type plain RawModule
	var p plain
	if err := decodeLoose(b, &p); err != nil {
		return fmt.Errorf("module: %w", err)
	}
	*m = RawModule(p)
	return nil
}

// RawFilters preserves the key order of the filters object, which the
// canonical form keeps as presentation order. A null or absent object
// parses as empty. The canonical array shape, a list of {name, values}
// entries, is accepted alongside the generator's object shape.
type RawFilters struct {
	Items []RawFilter
}

// RawFilter is one loose filter entry.
type RawFilter struct {
	Name   string
	Values FlexStrings
}

func (f *RawFilters) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	if trimmed[0] == '[' {
		var entries []struct {
			Name   string      `json:"name"`
			Values FlexStrings `json:"values"`
		}
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return fmt.Errorf("filters: %w", err)
		}
		for _, entry := range entries {
			f.Items = append(f.Items, RawFilter{Name: entry.Name, Values: entry.Values})
		}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("filters: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("filters: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("filters: non-string key %v", keyTok)
		}
		var values FlexStrings
		if err := dec.Decode(&values); err != nil {
			return fmt.Errorf("filters[%s]: %w", key, err)
		}
		f.Items = append(f.Items, RawFilter{Name: key, Values: values})
	}
	return nil
}

// FlexStrings decodes a JSON value that should be a list of strings but
// may arrive as a single string, a number, or a mixed array. Non-scalar
// elements are dropped.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	var raw any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("string list: %w", err)
	}

	switch v := raw.(type) {
	case string:
		*f = FlexStrings{v}
	case float64:
		*f = FlexStrings{formatNumber(v)}
	case bool:
		*f = FlexStrings{strconv.FormatBool(v)}
	case []any:
		out := make(FlexStrings, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case float64:
				out = append(out, formatNumber(s))
			case bool:
				out = append(out, strconv.FormatBool(s))
			}
		}
		*f = out
	}
	return nil
}

// FlexInt decodes an integer that may arrive as a number, a numeric
// string, or something unusable. Valid reports whether a usable integer
// was present.
type FlexInt struct {
	Value int
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var n float64
	if err := json.Unmarshal([]byte(trimmed), &n); err == nil {
		if n == float64(int(n)) {
			f.Value = int(n)
			f.Valid = true
		}
		return nil
	}

	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			f.Value = v
			f.Valid = true
		}
		return nil
	}
	// Unusable markers are discarded, not errors: the normalizer
	// renumbers steps anyway.
	return nil
}

// decodeLoose unmarshals a JSON object into v after folding its keys to
// snake_case, so "stepNumber" and "step_number" land in the same field.
// Nested values keep their own decoders.
func decodeLoose(b []byte, v any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	folded := make(map[string]json.RawMessage, len(fields))
	for key, value := range fields {
		folded[snakeKey(key)] = value
	}
	merged, err := json.Marshal(folded)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, v)
}

// snakeKey rewrites a camelCase key to snake_case. Keys that already are
// snake_case pass through unchanged.
func snakeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 2)
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ParseRaw decodes generator output into the loose shape. Only malformed
// JSON is an error; missing or oddly-typed fields are tolerated.
func ParseRaw(document []byte) (RawRecipe, error) {
	var raw RawRecipe
	if err := json.Unmarshal(document, &raw); err != nil {
		return RawRecipe{}, fmt.Errorf("parse recipe document: %w", err)
	}
	return raw, nil
}
