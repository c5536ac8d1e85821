// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the catalog layer.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "vejviser"

// Metrics holds the catalog-layer Prometheus collectors.
type Metrics struct {
	// Fetches counts successful API fetches per endpoint.
	Fetches *prometheus.CounterVec

	// FetchErrors counts fetches that failed with no cached fallback.
	FetchErrors *prometheus.CounterVec

	// DegradedServes counts stale payloads served after a failed refresh.
	DegradedServes *prometheus.CounterVec

	// FetchDuration observes API request latency per endpoint.
	FetchDuration *prometheus.HistogramVec

	// ValidationWarnings counts filter warnings by kind.
	ValidationWarnings *prometheus.CounterVec

	// RuleViolations counts rule violations by kind.
	RuleViolations *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics instance, registering the
// collectors with the default registry on first use.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = newMetrics()
	})
	return defaultMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		Fetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog",
			Name:      "fetches_total",
			Help:      "Successful KM24 API fetches by endpoint.",
		}, []string{"endpoint"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog",
			Name:      "fetch_errors_total",
			Help:      "API fetches that failed with no cached fallback.",
		}, []string{"endpoint"}),
		DegradedServes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog",
			Name:      "degraded_serves_total",
			Help:      "Stale cached payloads served after a failed refresh.",
		}, []string{"endpoint"}),
		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog",
			Name:      "fetch_duration_seconds",
			Help:      "KM24 API request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ValidationWarnings: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "recipe",
			Name:      "filter_warnings_total",
			Help:      "Filter validation warnings by kind.",
		}, []string{"kind"}),
		RuleViolations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "recipe",
			Name:      "rule_violations_total",
			Help:      "Recipe rule violations by kind.",
		}, []string{"kind"}),
	}
}
