// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package globals

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/globals/services/globals/transform"
)

// tracerName is the OTel tracer name for the service layer.
const tracerName = "globals.service"

// Package-level Prometheus metrics for transform operations.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// transformsTotal counts transform calls.
	//
	// Labels:
	//   - status: "touched", "untouched", "cached", "error"
	transformsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "globals",
			Subsystem: "transform",
			Name:      "files_total",
			Help:      "Total number of modules processed, by outcome.",
		},
		[]string{"status"},
	)

	// transformDuration measures parse plus rewrite time for uncached calls.
	transformDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "globals",
			Subsystem: "transform",
			Name:      "duration_seconds",
			Help:      "Duration of uncached module transforms in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// rewritesTotal counts individual rewrites.
	//
	// Labels:
	//   - kind: "import", "reexport", "reference", "alias", "dynamic"
	rewritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "globals",
			Subsystem: "transform",
			Name:      "rewrites_total",
			Help:      "Total number of source rewrites, by kind.",
		},
		[]string{"kind"},
	)

	// cacheLookupsTotal counts output cache lookups.
	//
	// Labels:
	//   - result: "hit", "miss", "error"
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "globals",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total output cache lookups, by result.",
		},
		[]string{"result"},
	)
)

// recordRewrites adds one run's counts to rewritesTotal.
func recordRewrites(s transform.Stats) {
	add := func(kind string, n int) {
		if n > 0 {
			rewritesTotal.WithLabelValues(kind).Add(float64(n))
		}
	}
	add("import", s.ImportsRemoved)
	add("reexport", s.ReexportsRewritten)
	add("reference", s.ReferencesRewritten)
	add("alias", s.LocalsAliased)
	add("dynamic", s.DynamicImportsRewritten)
}
