// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway exposes the recipe validation pipeline over HTTP.
package gateway

import (
	"encoding/json"

	"github.com/AleutianAI/vejviser/services/recipe"
	"github.com/AleutianAI/vejviser/services/recipe/datatypes"
)

// ServiceVersion is the Vejviser service version.
const ServiceVersion = "0.1.0"

// ValidateRequest is the body of POST /v1/vejviser/validate.
type ValidateRequest struct {
	// Goal is the user's stated investigation goal, used to synthesize
	// missing overview and scope fields.
	Goal string `json:"goal"`

	// Recipe is the raw generator document, passed through verbatim.
	Recipe json.RawMessage `json:"recipe" binding:"required"`

	// Export requests API-ready step payloads alongside the validated
	// recipe.
	Export bool `json:"export,omitempty"`
}

// ValidateResponse is the result of a validation call.
type ValidateResponse struct {
	Recipe     datatypes.Recipe    `json:"recipe"`
	Violations []recipe.Violation  `json:"violations"`
	Warnings   []recipe.Warning    `json:"warnings"`
	Degraded   bool                `json:"degraded"`
	Accepted   bool                `json:"accepted"`
	Export     []recipe.ExportStep `json:"export,omitempty"`
}

// RefreshResponse is the result of an admin catalog refresh.
type RefreshResponse struct {
	Status  string `json:"status"`
	Modules int    `json:"modules"`
}

// HealthResponse wraps the pipeline health report.
type HealthResponse struct {
	Version string              `json:"version"`
	Report  recipe.HealthReport `json:"report"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
