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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/vejviser/services/catalog/observability"
)

// HTTPDoer abstracts the HTTP transport so tests can inject a mock.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the catalog Client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://km24.dk/api".
	BaseURL string

	// APIKey is sent as the X-API-Key header on every request.
	APIKey string

	// Timeout bounds a single HTTP request. Default: 30s.
	Timeout time.Duration

	// RequestInterval is the minimum spacing between outbound requests.
	// Default: 100ms.
	RequestInterval time.Duration

	// MaxRetries is the number of additional attempts on transient
	// failures (network error, 5xx) before falling back to cache.
	// Default: 2.
	MaxRetries int

	// RetryBackoff is the base delay between attempts, multiplied by the
	// attempt number. Default: 500ms.
	RetryBackoff time.Duration

	// TTL controls how long a cached payload counts as fresh.
	// Default: 24h.
	TTL time.Duration

	// HTTPClient overrides the transport. Default: &http.Client{}.
	HTTPClient HTTPDoer

	// Store enables warm-restart persistence of fetched payloads.
	// Optional.
	Store *Store

	// Logger for request and degradation events. Default: slog.Default().
	Logger *slog.Logger
}

// Client fetches KM24 catalog metadata with caching, request spacing and
// graceful degradation.
//
// Degradation contract: when the API fails and a cached payload exists
// (fresh or stale), the cached payload is served and the result is marked
// Degraded. A hard error occurs only when nothing cached exists.
type Client struct {
	config  ClientConfig
	http    HTTPDoer
	cache   *MetadataCache
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient creates a catalog client. The API key may be empty; every
// fetch then fails with ErrNotConfigured (cached data is still served).
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RequestInterval == 0 {
		config.RequestInterval = 100 * time.Millisecond
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = 500 * time.Millisecond
	}
	if config.TTL == 0 {
		config.TTL = 24 * time.Hour
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Client{
		config: config,
		http:   config.HTTPClient,
		cache:  NewMetadataCache(),
		// Burst 1 makes the limiter a plain spacing delay between
		// requests rather than a bucketed allowance.
		limiter: rate.NewLimiter(rate.Every(config.RequestInterval), 1),
		logger:  config.Logger,
		metrics: observability.Default(),
	}
}

// Cache exposes the in-memory cache for hydration and inspection.
func (c *Client) Cache() *MetadataCache {
	return c.cache
}

// Hydrate loads persisted payloads from the store into the in-memory
// cache. Entries older than a week are ignored. No-op without a store.
func (c *Client) Hydrate() {
	if c.config.Store == nil {
		return
	}
	loaded, err := c.config.Store.Hydrate(c.cache, 7*24*time.Hour, c.config.TTL)
	if err != nil {
		c.logger.Warn("cache hydration failed", "error", err)
		return
	}
	if loaded > 0 {
		c.logger.Info("cache hydrated from store", "entries", loaded)
	}
}

// ClearCache empties both the in-memory cache and the persistent store.
func (c *Client) ClearCache() error {
	c.cache.InvalidateAll()
	if c.config.Store == nil {
		return nil
	}
	removed, err := c.config.Store.Clear()
	if err != nil {
		return err
	}
	c.logger.Info("persistent cache cleared", "entries", removed)
	return nil
}

// fetch returns the payload for endpoint, from cache when fresh, from the
// API otherwise. The degraded return is true when a stale payload was
// served because the API could not be reached.
func (c *Client) fetch(ctx context.Context, endpoint string, forceRefresh bool) (data []byte, degraded bool, err error) {
	if forceRefresh {
		// Keep the old payload around as the degradation fallback.
		c.cache.MarkStale(endpoint)
	}

	data, stale, err := c.cache.GetOrFetch(ctx, endpoint, c.config.TTL, func(ctx context.Context) ([]byte, error) {
		return c.request(ctx, endpoint)
	})
	if err != nil {
		c.metrics.FetchErrors.WithLabelValues(endpoint).Inc()
		return nil, false, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if stale {
		c.metrics.DegradedServes.WithLabelValues(endpoint).Inc()
		c.logger.Warn("serving stale catalog data", "endpoint", endpoint)
	}
	return data, stale, nil
}

// request performs one rate-limited, retried GET against the API.
func (c *Client) request(ctx context.Context, endpoint string) ([]byte, error) {
	if c.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.config.RetryBackoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, retryable, err := c.doRequest(ctx, endpoint)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Debug("retrying catalog request", "endpoint", endpoint, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, endpoint string) (data []byte, retryable bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request %s: %w", endpoint, err)
	}
	req.Header.Set("X-API-Key", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.metrics.FetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("read response %s: %w", endpoint, err)
		}
		if !json.Valid(body) {
			return nil, false, fmt.Errorf("endpoint %s returned non-JSON content", endpoint)
		}
		c.metrics.Fetches.WithLabelValues(endpoint).Inc()
		c.persist(endpoint, body)
		return body, false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, fmt.Errorf("authentication failed (%d): check KM24_API_KEY and permissions", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed:
		return nil, false, fmt.Errorf("endpoint %s not found (%d)", endpoint, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error %d on %s", resp.StatusCode, endpoint)
	default:
		return nil, false, fmt.Errorf("unexpected status %d on %s", resp.StatusCode, endpoint)
	}
}

// persist writes a fetched payload to the store, best effort.
func (c *Client) persist(endpoint string, data []byte) {
	if c.config.Store == nil {
		return
	}
	if err := c.config.Store.Save(endpoint, data, time.Now()); err != nil {
		c.logger.Warn("persisting catalog payload failed", "endpoint", endpoint, "error", err)
	}
}

// fetchJSON fetches an endpoint and decodes it into v.
func fetchJSON[T any](ctx context.Context, c *Client, endpoint string, forceRefresh bool) (v T, degraded bool, err error) {
	data, degraded, err := c.fetch(ctx, endpoint, forceRefresh)
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return v, degraded, nil
}

// FetchModulesBasic returns the full module list with nested parts.
func (c *Client) FetchModulesBasic(ctx context.Context, forceRefresh bool) (modules []Module, degraded bool, err error) {
	resp, degraded, err := fetchJSON[modulesResponse](ctx, c, "/modules/basic", forceRefresh)
	if err != nil {
		return nil, false, err
	}
	return resp.Modules, degraded, nil
}

// FetchModuleByID returns one module with its parts.
func (c *Client) FetchModuleByID(ctx context.Context, id int, forceRefresh bool) (Module, bool, error) {
	return fetchJSON[Module](ctx, c, fmt.Sprintf("/modules/basic/%d", id), forceRefresh)
}

// FetchGenericValues returns the legal values for a generic-value part.
func (c *Client) FetchGenericValues(ctx context.Context, partID int, forceRefresh bool) ([]GenericValue, bool, error) {
	resp, degraded, err := fetchJSON[itemsResponse[GenericValue]](ctx, c, fmt.Sprintf("/generic-values/%d", partID), forceRefresh)
	if err != nil {
		return nil, false, err
	}
	return resp.Items, degraded, nil
}

// FetchWebSources returns the selectable sources for a web-source module.
func (c *Client) FetchWebSources(ctx context.Context, moduleID int, forceRefresh bool) ([]WebSource, bool, error) {
	resp, degraded, err := fetchJSON[itemsResponse[WebSource]](ctx, c, fmt.Sprintf("/web-sources/categories/%d", moduleID), forceRefresh)
	if err != nil {
		return nil, false, err
	}
	return resp.Items, degraded, nil
}

// FetchMunicipalities returns the Danish municipality reference list.
func (c *Client) FetchMunicipalities(ctx context.Context, forceRefresh bool) ([]Municipality, bool, error) {
	resp, degraded, err := fetchJSON[itemsResponse[Municipality]](ctx, c, "/municipalities", forceRefresh)
	if err != nil {
		return nil, false, err
	}
	return resp.Items, degraded, nil
}

// FetchBranchCodes returns the detailed industry code list.
func (c *Client) FetchBranchCodes(ctx context.Context, forceRefresh bool) ([]BranchCode, bool, error) {
	resp, degraded, err := fetchJSON[itemsResponse[BranchCode]](ctx, c, "/branch-codes/detailed", forceRefresh)
	if err != nil {
		return nil, false, err
	}
	return resp.Items, degraded, nil
}

// FetchRegions returns the Danish region reference list.
func (c *Client) FetchRegions(ctx context.Context, forceRefresh bool) ([]NamedEntry, bool, error) {
	resp, degraded, err := fetchJSON[itemsResponse[NamedEntry]](ctx, c, "/regions", forceRefresh)
	if err != nil {
		return nil, false, err
	}
	return resp.Items, degraded, nil
}

// FetchCourtDistricts returns the court district reference list.
func (c *Client) FetchCourtDistricts(ctx context.Context, forceRefresh bool) ([]NamedEntry, bool, error) {
	resp, degraded, err := fetchJSON[itemsResponse[NamedEntry]](ctx, c, "/court-districts", forceRefresh)
	if err != nil {
		return nil, false, err
	}
	return resp.Items, degraded, nil
}

// HealthStatus describes catalog reachability for the health report.
type HealthStatus struct {
	Status       string        `json:"status"`
	ModulesCount int           `json:"modulesCount,omitempty"`
	CacheAge     time.Duration `json:"cacheAge,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Health probes the API through the module list and reports the outcome.
// "not_configured" means no API key, "degraded" means stale cache served,
// "healthy" means live or fresh-cached data.
func (c *Client) Health(ctx context.Context) HealthStatus {
	if c.config.APIKey == "" {
		return HealthStatus{Status: "not_configured", Error: ErrNotConfigured.Error()}
	}

	modules, degraded, err := c.FetchModulesBasic(ctx, false)
	if err != nil {
		return HealthStatus{Status: "error", Error: err.Error()}
	}

	status := HealthStatus{Status: "healthy", ModulesCount: len(modules)}
	if age, ok := c.cache.Age("/modules/basic"); ok {
		status.CacheAge = age
	}
	if degraded {
		status.Status = "degraded"
	}
	return status
}
