// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/vejviser/services/recipe"
	"github.com/AleutianAI/vejviser/services/recipe/datatypes"
)

// validateTimeout bounds catalog fetches during a one-shot validation.
const validateTimeout = 2 * time.Minute

// validateOutput is the JSON document printed on stdout.
type validateOutput struct {
	Recipe     datatypes.Recipe    `json:"recipe"`
	Violations []recipe.Violation  `json:"violations"`
	Warnings   []recipe.Warning    `json:"warnings"`
	Degraded   bool                `json:"degraded"`
	Accepted   bool                `json:"accepted"`
	Export     []recipe.ExportStep `json:"export,omitempty"`
}

// runValidate validates one recipe document from a file or stdin and
// prints the result as JSON. Exits non-zero when rule violations
// remain, so the command composes in shell pipelines.
func runValidate(cmd *cobra.Command, args []string) error {
	document, err := readDocument(args)
	if err != nil {
		return err
	}

	pipeline, logger, err := newPipeline("cli")
	if err != nil {
		return err
	}
	defer logger.Close()
	defer pipeline.Close()

	ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
	defer cancel()

	result, err := pipeline.ValidateAndNormalize(ctx, document, goal)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	out := validateOutput{
		Recipe:     result.Recipe,
		Violations: result.Violations,
		Warnings:   result.Warnings,
		Degraded:   result.Degraded,
		Accepted:   len(result.Violations) == 0,
	}
	if exportSteps {
		steps, warnings := pipeline.Export(&result.Recipe)
		out.Export = steps
		out.Warnings = append(out.Warnings, warnings...)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return err
	}

	if !out.Accepted {
		return fmt.Errorf("%d rule violation(s)", len(out.Violations))
	}
	return nil
}

// readDocument reads the recipe JSON from the file argument, or stdin
// when no argument is given.
func readDocument(args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	return data, nil
}
