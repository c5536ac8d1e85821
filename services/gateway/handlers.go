// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/vejviser/services/catalog"
	"github.com/AleutianAI/vejviser/services/recipe"
	"github.com/AleutianAI/vejviser/services/recipe/datatypes"
)

// Pipeline is the validation surface the gateway serves, kept narrow so
// tests can substitute the service.
type Pipeline interface {
	ValidateAndNormalize(ctx context.Context, document []byte, goal string) (recipe.Result, error)
	Export(r *datatypes.Recipe) ([]recipe.ExportStep, []recipe.Warning)
	ForceRefresh(ctx context.Context) error
	ClearCache() error
	Health(ctx context.Context) recipe.HealthReport
	Registry() *catalog.Registry
}

// Handlers contains the HTTP handlers for the Vejviser gateway.
type Handlers struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// NewHandlers creates handlers over the given pipeline.
func NewHandlers(pipeline Pipeline, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{pipeline: pipeline, logger: logger}
}

// HandleValidate handles POST /v1/vejviser/validate.
//
// Description:
//
//	Normalizes and validates a raw recipe document against the live
//	KM24 catalog. Content problems come back as violations and
//	warnings in a 200 response; only a malformed document produces an
//	error status. Catalog loss degrades the response instead.
//
// Request Body:
//
//	ValidateRequest
//
// Response:
//
//	200 OK: ValidateResponse
//	400 Bad Request: malformed JSON
func (h *Handlers) HandleValidate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleValidate")

	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	result, err := h.pipeline.ValidateAndNormalize(c.Request.Context(), req.Recipe, req.Goal)
	if err != nil {
		logger.Warn("validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_DOCUMENT",
		})
		return
	}

	resp := ValidateResponse{
		Recipe:     result.Recipe,
		Violations: result.Violations,
		Warnings:   result.Warnings,
		Degraded:   result.Degraded,
		Accepted:   len(result.Violations) == 0,
	}
	if req.Export {
		steps, warnings := h.pipeline.Export(&result.Recipe)
		resp.Export = steps
		resp.Warnings = append(resp.Warnings, warnings...)
	}

	logger.Info("recipe validated",
		"steps", len(result.Recipe.Steps),
		"violations", len(resp.Violations),
		"warnings", len(resp.Warnings),
		"degraded", result.Degraded)

	c.JSON(http.StatusOK, resp)
}

// HandleRefresh handles POST /v1/vejviser/admin/refresh.
//
// Forces a catalog re-fetch, bypassing the cache. Idempotent.
func (h *Handlers) HandleRefresh(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleRefresh")

	if err := h.pipeline.ForceRefresh(c.Request.Context()); err != nil {
		logger.Error("catalog refresh failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: err.Error(),
			Code:  "REFRESH_FAILED",
		})
		return
	}

	modules := h.pipeline.Registry().Len()
	logger.Info("catalog refreshed", "modules", modules)
	c.JSON(http.StatusOK, RefreshResponse{Status: "refreshed", Modules: modules})
}

// HandleClearCache handles POST /v1/vejviser/admin/clear-cache.
//
// Evicts every cached catalog payload, memory and disk. Idempotent.
func (h *Handlers) HandleClearCache(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleClearCache")

	if err := h.pipeline.ClearCache(); err != nil {
		logger.Error("cache clear failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "CLEAR_FAILED",
		})
		return
	}

	logger.Info("catalog cache cleared")
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// HandleHealth handles GET /v1/vejviser/health.
//
// Always answers 200; a down catalog shows up in the report body, not
// as an HTTP failure.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Version: ServiceVersion,
		Report:  h.pipeline.Health(c.Request.Context()),
	})
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
