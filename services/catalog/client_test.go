// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulesPayload = `{
	"modules": [
		{"id": 110, "title": "Arbejdstilsyn", "slug": "arbejdstilsyn", "parts": [
			{"id": 2, "name": "Kommune", "part": "municipality"},
			{"id": 205, "name": "Problem", "part": "generic_value"}
		]},
		{"id": 42, "title": "Lokalpolitik", "slug": "lokalpolitik", "parts": [
			{"id": 310, "name": "Webkilde", "part": "web_source"}
		]}
	]
}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		RequestInterval: time.Millisecond,
		RetryBackoff:    time.Millisecond,
		TTL:             time.Hour,
	})
	return client, server
}

func TestFetchModulesBasic(t *testing.T) {
	var gotKey atomic.Value
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("X-API-Key"))
		require.Equal(t, "/modules/basic", r.URL.Path)
		w.Write([]byte(modulesPayload))
	}))

	modules, degraded, err := client.FetchModulesBasic(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, modules, 2)
	assert.Equal(t, "Arbejdstilsyn", modules[0].Title)
	assert.Equal(t, PartGenericValue, modules[0].Parts[1].Part)
	assert.Equal(t, "test-key", gotKey.Load())
}

func TestFetchUsesCache(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(modulesPayload))
	}))

	_, _, err := client.FetchModulesBasic(context.Background(), false)
	require.NoError(t, err)
	_, _, err = client.FetchModulesBasic(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second fetch must be served from cache")
}

func TestForceRefreshBypassesCache(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(modulesPayload))
	}))

	_, _, err := client.FetchModulesBasic(context.Background(), false)
	require.NoError(t, err)
	_, _, err = client.FetchModulesBasic(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDegradedServeOnServerError(t *testing.T) {
	var failing atomic.Bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(modulesPayload))
	}))

	_, _, err := client.FetchModulesBasic(context.Background(), false)
	require.NoError(t, err)

	failing.Store(true)
	modules, degraded, err := client.FetchModulesBasic(context.Background(), true)
	require.NoError(t, err, "cached payload must be served when the API fails")
	assert.True(t, degraded)
	assert.Len(t, modules, 2)
}

func TestHardErrorWithoutCache(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, _, err := client.FetchModulesBasic(context.Background(), false)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, _, err := client.FetchModulesBasic(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://unused"})
	_, _, err := client.FetchModulesBasic(context.Background(), false)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestFetchGenericValues(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generic-values/205", r.URL.Path)
		w.Write([]byte(`{"items":[{"id":1,"name":"Asbest"},{"id":2,"name":"Stilladser"}]}`))
	}))

	values, _, err := client.FetchGenericValues(context.Background(), 205, false)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "Asbest", values[0].Name)
}

func TestFetchWebSources(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/web-sources/categories/42", r.URL.Path)
		w.Write([]byte(`{"items":[{"id":9,"name":"Aarhus"}]}`))
	}))

	sources, _, err := client.FetchWebSources(context.Background(), 42, false)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Aarhus", sources[0].Name)
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(modulesPayload))
	}))

	status := client.Health(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 2, status.ModulesCount)
}

func TestHealthNotConfigured(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://unused"})
	status := client.Health(context.Background())
	assert.Equal(t, "not_configured", status.Status)
}

func TestFetchModuleByID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/modules/basic/110", r.URL.Path)
		w.Write([]byte(`{"id": 110, "title": "Arbejdstilsyn", "slug": "arbejdstilsyn", "parts": []}`))
	}))

	module, _, err := client.FetchModuleByID(context.Background(), 110, false)
	require.NoError(t, err)
	assert.Equal(t, "Arbejdstilsyn", module.Title)
}

func TestFetchMunicipalities(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/municipalities", r.URL.Path)
		w.Write([]byte(`{"items":[{"id":751,"name":"Aarhus","region":"Midtjylland"}]}`))
	}))

	municipalities, _, err := client.FetchMunicipalities(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, municipalities, 1)
	assert.Equal(t, "Aarhus", municipalities[0].Name)
	assert.Equal(t, "Midtjylland", municipalities[0].Region)
}

func TestFetchBranchCodes(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/branch-codes/detailed", r.URL.Path)
		w.Write([]byte(`{"items":[{"code":"41.20","description":"Opførelse af bygninger","category":"Bygge og anlæg","level":2}]}`))
	}))

	codes, _, err := client.FetchBranchCodes(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "41.20", codes[0].Code)
	assert.Equal(t, 2, codes[0].Level)
}
