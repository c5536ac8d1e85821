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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/vejviser/services/catalog"
	"github.com/AleutianAI/vejviser/services/recipe"
	"github.com/AleutianAI/vejviser/services/recipe/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubPipeline implements Pipeline with canned responses.
type stubPipeline struct {
	result     recipe.Result
	exportOut  []recipe.ExportStep
	refreshErr error
	clearErr   error
	registry   *catalog.Registry
	refreshed  int
	cleared    int
}

func (s *stubPipeline) ValidateAndNormalize(_ context.Context, document []byte, _ string) (recipe.Result, error) {
	if !json.Valid(document) {
		return recipe.Result{}, errors.New("invalid JSON")
	}
	return s.result, nil
}

func (s *stubPipeline) Export(*datatypes.Recipe) ([]recipe.ExportStep, []recipe.Warning) {
	return s.exportOut, nil
}

func (s *stubPipeline) ForceRefresh(context.Context) error {
	s.refreshed++
	return s.refreshErr
}

func (s *stubPipeline) ClearCache() error {
	s.cleared++
	return s.clearErr
}

func (s *stubPipeline) Health(context.Context) recipe.HealthReport {
	return recipe.HealthReport{
		Catalog: catalog.HealthStatus{Status: "healthy", ModulesCount: 2},
		Modules: 2,
	}
}

func (s *stubPipeline) Registry() *catalog.Registry {
	return s.registry
}

func newTestRouter(stub *stubPipeline) *gin.Engine {
	if stub.registry == nil {
		stub.registry = catalog.NewRegistry()
		stub.registry.Update([]catalog.Module{
			{ID: 110, Title: "Arbejdstilsyn"},
			{ID: 77, Title: "Tinglysning"},
		})
	}
	return NewRouter(NewHandlers(stub, nil))
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHandleValidate(t *testing.T) {
	stub := &stubPipeline{result: recipe.Result{
		Recipe:     datatypes.Recipe{Steps: []datatypes.Step{{StepNumber: 1}}},
		Violations: []recipe.Violation{},
		Warnings:   []recipe.Warning{},
	}}
	router := newTestRouter(stub)

	w := doRequest(router, http.MethodPost, "/v1/vejviser/validate",
		`{"goal": "test", "recipe": {"steps": []}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Len(t, resp.Recipe.Steps, 1)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleValidateWithViolations(t *testing.T) {
	stub := &stubPipeline{result: recipe.Result{
		Violations: []recipe.Violation{{Kind: "too-few-steps", Message: "pipeline has 1 steps"}},
		Warnings:   []recipe.Warning{},
	}}
	router := newTestRouter(stub)

	w := doRequest(router, http.MethodPost, "/v1/vejviser/validate",
		`{"recipe": {"steps": []}}`)

	require.Equal(t, http.StatusOK, w.Code, "violations are data, not HTTP errors")
	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)
	require.Len(t, resp.Violations, 1)
}

func TestHandleValidateMalformedDocument(t *testing.T) {
	router := newTestRouter(&stubPipeline{})

	w := doRequest(router, http.MethodPost, "/v1/vejviser/validate", `{"recipe": "not an object`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestHandleValidateMissingRecipe(t *testing.T) {
	router := newTestRouter(&stubPipeline{})

	w := doRequest(router, http.MethodPost, "/v1/vejviser/validate", `{"goal": "test"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleValidateWithExport(t *testing.T) {
	stub := &stubPipeline{
		result: recipe.Result{Warnings: []recipe.Warning{}},
		exportOut: []recipe.ExportStep{
			{Name: "Test", ModuleID: 110, LookbackDays: 30, Parts: []recipe.ExportPart{}},
		},
	}
	router := newTestRouter(stub)

	w := doRequest(router, http.MethodPost, "/v1/vejviser/validate",
		`{"recipe": {"steps": []}, "export": true}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Export, 1)
	assert.Equal(t, 110, resp.Export[0].ModuleID)
}

func TestHandleRefresh(t *testing.T) {
	stub := &stubPipeline{}
	router := newTestRouter(stub)

	w := doRequest(router, http.MethodPost, "/v1/vejviser/admin/refresh", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, stub.refreshed)
	var resp RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "refreshed", resp.Status)
	assert.Equal(t, 2, resp.Modules)
}

func TestHandleRefreshFailure(t *testing.T) {
	stub := &stubPipeline{refreshErr: catalog.ErrCatalogUnavailable}
	router := newTestRouter(stub)

	w := doRequest(router, http.MethodPost, "/v1/vejviser/admin/refresh", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleClearCache(t *testing.T) {
	stub := &stubPipeline{}
	router := newTestRouter(stub)

	w := doRequest(router, http.MethodPost, "/v1/vejviser/admin/clear-cache", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, stub.cleared)
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(&stubPipeline{})

	w := doRequest(router, http.MethodGet, "/v1/vejviser/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, "healthy", resp.Report.Catalog.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&stubPipeline{})

	w := doRequest(router, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRequestIDPropagated(t *testing.T) {
	router := newTestRouter(&stubPipeline{result: recipe.Result{}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/vejviser/validate",
		strings.NewReader(`{"recipe": {}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "fixed-id")
	router.ServeHTTP(w, req)

	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
}
