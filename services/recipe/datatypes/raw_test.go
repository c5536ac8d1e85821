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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawModuleAsString(t *testing.T) {
	raw, err := ParseRaw([]byte(`{
		"investigation_steps": [
			{"step": 1, "title": "Find virksomheder", "module": "Registrering"}
		]
	}`))
	require.NoError(t, err)

	steps := raw.AllSteps()
	require.Len(t, steps, 1)
	assert.Equal(t, "Registrering", steps[0].Module.Name)
	assert.False(t, steps[0].Module.IsWebSource)
}

func TestParseRawModuleAsObject(t *testing.T) {
	raw, err := ParseRaw([]byte(`{
		"steps": [
			{"step_number": 1, "module": {"id": 42, "name": "Lokalpolitik", "is_web_source": true}}
		]
	}`))
	require.NoError(t, err)

	m := raw.AllSteps()[0].Module
	assert.Equal(t, 42, m.ID.Value)
	assert.True(t, m.ID.Valid)
	assert.Equal(t, "Lokalpolitik", m.Name)
	assert.True(t, m.IsWebSource)
}

func TestStepsKeyWinsOverInvestigationSteps(t *testing.T) {
	raw, err := ParseRaw([]byte(`{
		"steps": [{"title": "a"}],
		"investigation_steps": [{"title": "b"}, {"title": "c"}]
	}`))
	require.NoError(t, err)
	steps := raw.AllSteps()
	require.Len(t, steps, 1)
	assert.Equal(t, "a", steps[0].Title)
}

func TestRawFiltersPreserveOrder(t *testing.T) {
	var step RawStep
	err := json.Unmarshal([]byte(`{
		"filters": {
			"geografi": ["Aarhus", "København"],
			"branche": "41.20",
			"beløbsgrænse": 1000000
		}
	}`), &step)
	require.NoError(t, err)

	require.Len(t, step.Filters.Items, 3)
	assert.Equal(t, "geografi", step.Filters.Items[0].Name)
	assert.Equal(t, []string{"Aarhus", "København"}, []string(step.Filters.Items[0].Values))
	assert.Equal(t, "branche", step.Filters.Items[1].Name)
	assert.Equal(t, []string{"41.20"}, []string(step.Filters.Items[1].Values))
	assert.Equal(t, "beløbsgrænse", step.Filters.Items[2].Name)
	assert.Equal(t, []string{"1000000"}, []string(step.Filters.Items[2].Values))
}

func TestRawFiltersNull(t *testing.T) {
	var step RawStep
	err := json.Unmarshal([]byte(`{"filters": null}`), &step)
	require.NoError(t, err)
	assert.Empty(t, step.Filters.Items)
}

func TestNotificationFromDetails(t *testing.T) {
	var step RawStep
	err := json.Unmarshal([]byte(`{
		"details": {"recommended_notification": "løbende"}
	}`), &step)
	require.NoError(t, err)
	assert.Equal(t, []string{"løbende"}, step.NotificationValues())
}

func TestTopLevelNotificationWins(t *testing.T) {
	var step RawStep
	err := json.Unmarshal([]byte(`{
		"notification": "daglig",
		"details": {"recommended_notification": "løbende"}
	}`), &step)
	require.NoError(t, err)
	assert.Equal(t, []string{"daglig"}, step.NotificationValues())
}

func TestNotificationAsArrayParses(t *testing.T) {
	var step RawStep
	err := json.Unmarshal([]byte(`{
		"notification": ["daily", "weekly"]
	}`), &step)
	require.NoError(t, err)
	assert.Equal(t, []string{"daily", "weekly"}, step.NotificationValues())
}

func TestParseRawAcceptsCanonicalKeys(t *testing.T) {
	raw, err := ParseRaw([]byte(`{
		"overview": {"title": "Asbest", "strategySummary": "Følg tilsynet"},
		"scope": {"primaryFocus": "Nedrivning", "secondaryAreas": ["Aarhus"]},
		"steps": [{
			"stepNumber": 2,
			"module": {"id": 42, "name": "Lokalpolitik", "isWebSource": true},
			"searchString": "asbest",
			"sourceSelection": ["Aarhus Kommune"]
		}],
		"crossRefs": [{"fromStep": 1, "toStep": 2, "relationship": "follow"}],
		"nextLevelQuestions": ["Hvem ejer grunden?"]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Følg tilsynet", raw.Overview.StrategySummary)
	assert.Equal(t, "Nedrivning", raw.Scope.PrimaryFocus)
	assert.Equal(t, []string{"Aarhus"}, []string(raw.Scope.SecondaryAreas))

	steps := raw.AllSteps()
	require.Len(t, steps, 1)
	assert.Equal(t, 2, steps[0].StepNumber.Value)
	assert.True(t, steps[0].Module.IsWebSource)
	assert.Equal(t, "asbest", steps[0].SearchString)
	assert.Equal(t, []string{"Aarhus Kommune"}, []string(steps[0].SourceSelection))

	require.Len(t, raw.CrossRefs, 1)
	assert.Equal(t, 1, raw.CrossRefs[0].FromStep.Value)
	assert.Equal(t, 2, raw.CrossRefs[0].ToStep.Value)

	assert.Equal(t, []string{"Hvem ejer grunden?"}, []string(raw.NextLevelQuestions))
}

func TestRawFiltersArrayShape(t *testing.T) {
	var step RawStep
	err := json.Unmarshal([]byte(`{
		"filters": [
			{"name": "kommune", "values": ["Aarhus"]},
			{"name": "problem", "values": ["Asbest"]}
		]
	}`), &step)
	require.NoError(t, err)

	require.Len(t, step.Filters.Items, 2)
	assert.Equal(t, "kommune", step.Filters.Items[0].Name)
	assert.Equal(t, []string{"Aarhus"}, []string(step.Filters.Items[0].Values))
	assert.Equal(t, "problem", step.Filters.Items[1].Name)
	assert.Equal(t, []string{"Asbest"}, []string(step.Filters.Items[1].Values))
}

func TestFlexIntVariants(t *testing.T) {
	tests := []struct {
		input string
		want  int
		valid bool
	}{
		{`3`, 3, true},
		{`"7"`, 7, true},
		{`" 2 "`, 2, true},
		{`null`, 0, false},
		{`"abc"`, 0, false},
		{`2.5`, 0, false},
		{`[1]`, 0, false},
	}
	for _, tt := range tests {
		var f FlexInt
		err := json.Unmarshal([]byte(tt.input), &f)
		require.NoError(t, err, "input %s", tt.input)
		assert.Equal(t, tt.valid, f.Valid, "input %s", tt.input)
		assert.Equal(t, tt.want, f.Value, "input %s", tt.input)
	}
}

func TestOverviewAsString(t *testing.T) {
	raw, err := ParseRaw([]byte(`{"overview": "Følg pengene"}`))
	require.NoError(t, err)
	assert.Equal(t, "Følg pengene", raw.Overview.StrategySummary)
}

func TestRecipeValidate(t *testing.T) {
	recipe := Recipe{
		Steps: []Step{{
			StepNumber:   1,
			Module:       ModuleRef{ID: 110, Name: "Arbejdstilsyn"},
			Notification: NotificationDaily,
		}},
	}
	require.NoError(t, recipe.Validate())

	recipe.Steps[0].Notification = "ugyldig"
	require.Error(t, recipe.Validate())
}
