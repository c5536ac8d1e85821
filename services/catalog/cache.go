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
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheEntry is one cached API payload with its freshness metadata.
type CacheEntry struct {
	Data     []byte
	CachedAt time.Time
	TTL      time.Duration
}

// Stale reports whether the entry has outlived its TTL.
func (e CacheEntry) Stale(now time.Time) bool {
	return now.Sub(e.CachedAt) > e.TTL
}

// CacheStats holds cumulative cache counters.
type CacheStats struct {
	Hits        int64
	Misses      int64
	StaleServes int64
	Refreshes   int64
}

// MetadataCache caches API payloads keyed by endpoint path.
//
// A stale entry is never evicted on read: it is kept as the fall-back
// value for when a refresh fails. Concurrent refreshes of the same key
// are collapsed into one upstream call via singleflight.
//
// All methods are safe for concurrent use.
type MetadataCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry

	group singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	staleServes atomic.Int64
	refreshes   atomic.Int64

	// nowFn is replaceable in tests.
	nowFn func() time.Time
}

// NewMetadataCache creates an empty cache.
func NewMetadataCache() *MetadataCache {
	return &MetadataCache{
		entries: make(map[string]CacheEntry),
		nowFn:   time.Now,
	}
}

// Get returns the cached payload for key without any network activity.
// The second return reports staleness; the third whether the key exists.
func (c *MetadataCache) Get(key string) (data []byte, stale bool, found bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false, false
	}
	c.hits.Add(1)
	return entry.Data, entry.Stale(c.nowFn()), true
}

// Put stores a payload under key with the given TTL.
func (c *MetadataCache) Put(key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = CacheEntry{Data: data, CachedAt: c.nowFn(), TTL: ttl}
	c.mu.Unlock()
}

// PutEntry stores a pre-built entry, preserving its original CachedAt.
// Used when hydrating from the persistent store after a restart.
func (c *MetadataCache) PutEntry(key string, entry CacheEntry) {
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// MarkStale forces the entry under key to count as stale without
// removing it, so it remains available as a degradation fallback.
func (c *MetadataCache) MarkStale(key string) {
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		entry.TTL = 0
		entry.CachedAt = entry.CachedAt.Add(-time.Nanosecond)
		c.entries[key] = entry
	}
	c.mu.Unlock()
}

// Invalidate removes one key.
func (c *MetadataCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll empties the cache.
func (c *MetadataCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.mu.Unlock()
}

// Age returns how old the entry under key is, and whether it exists.
func (c *MetadataCache) Age(key string) (time.Duration, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return c.nowFn().Sub(entry.CachedAt), true
}

// Len returns the number of cached keys.
func (c *MetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrFetch returns a fresh payload for key, fetching through fn when the
// cached entry is missing or stale.
//
// When fn fails and a stale entry exists, the stale payload is returned
// with stale=true and a nil error.
// The error surfaces only when there is nothing at all to serve.
// Concurrent callers for the same key share a single fn invocation.
func (c *MetadataCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) (data []byte, stale bool, err error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !entry.Stale(c.nowFn()) {
		c.hits.Add(1)
		return entry.Data, false, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have refreshed while we waited on the group.
		c.mu.RLock()
		current, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && !current.Stale(c.nowFn()) {
			return current.Data, nil
		}

		fetched, fetchErr := fn(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		c.refreshes.Add(1)
		c.Put(key, fetched, ttl)
		return fetched, nil
	})

	if err == nil {
		return result.([]byte), false, nil
	}

	if ok {
		c.staleServes.Add(1)
		return entry.Data, true, nil
	}
	c.misses.Add(1)
	return nil, false, err
}

// Stats returns a snapshot of the cumulative counters.
func (c *MetadataCache) Stats() CacheStats {
	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		StaleServes: c.staleServes.Load(),
		Refreshes:   c.refreshes.Load(),
	}
}
