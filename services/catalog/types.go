// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog talks to the KM24 metadata API and keeps a local,
// staleness-tolerant copy of the module catalog.
//
// The package has three layers:
//
//   - Client: authenticated HTTP access with request spacing, retries and
//     fall-back to cached payloads when the API is unreachable.
//   - MetadataCache / Store: in-memory TTL cache with single-flight refresh,
//     optionally persisted through badger for warm restarts.
//   - Registry: an immutable snapshot of the module catalog with
//     deterministic name resolution.
//
// Validation code never performs network I/O; it reads registry snapshots.
package catalog

import "errors"

// Sentinel errors for callers that need to branch on failure class.
var (
	// ErrCatalogUnavailable means the API failed and no cached payload
	// exists to fall back on.
	ErrCatalogUnavailable = errors.New("catalog unavailable and no cached data")

	// ErrModuleNotFound means a module name or id did not resolve against
	// the current catalog snapshot.
	ErrModuleNotFound = errors.New("module not found in catalog")

	// ErrNotConfigured means the API key is missing.
	ErrNotConfigured = errors.New("KM24_API_KEY not configured")
)

// PartType classifies a module part, which determines what kind of filter
// values it accepts.
type PartType string

// Part types as returned by the KM24 API.
const (
	PartCompany         PartType = "company"
	PartIndustry        PartType = "industry"
	PartMunicipality    PartType = "municipality"
	PartSearchString    PartType = "search_string"
	PartHitLogic        PartType = "hit_logic"
	PartAmountSelection PartType = "amount_selection"
	PartGenericValue    PartType = "generic_value"
	PartWebSource       PartType = "web_source"
	PartCustomNumber    PartType = "custom_number"
	PartPerson          PartType = "person"
)

// Part is a configurable slot on a module. Generic-value parts carry their
// own id used to fetch the legal value list.
type Part struct {
	ID                int      `json:"id"`
	Name              string   `json:"name"`
	Slug              string   `json:"slug"`
	Part              PartType `json:"part"`
	CanSelectMultiple bool     `json:"canSelectMultiple"`
	Order             int      `json:"order"`
}

// Module is one KM24 monitoring module with its configurable parts.
type Module struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Parts []Part `json:"parts"`
}

// HasPartType reports whether the module carries at least one part of the
// given type.
func (m Module) HasPartType(t PartType) bool {
	for _, p := range m.Parts {
		if p.Part == t {
			return true
		}
	}
	return false
}

// modulesResponse is the /modules/basic payload.
type modulesResponse struct {
	Modules []Module `json:"modules"`
}

// GenericValue is one legal value for a generic-value part.
type GenericValue struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// WebSource is one selectable source for a web-source module.
type WebSource struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Municipality is one entry from /municipalities.
type Municipality struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// BranchCode is one entry from /branch-codes/detailed.
type BranchCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Level       int    `json:"level"`
}

// NamedEntry is the common shape of the remaining reference lists
// (regions, court districts).
type NamedEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// itemsResponse wraps the {"items": [...]} payload shared by the list
// endpoints (generic values, web sources, municipalities, branch codes,
// regions, court districts).
type itemsResponse[T any] struct {
	Items []T `json:"items"`
}
