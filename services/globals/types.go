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
	"github.com/AleutianAI/globals/services/globals/ast"
	"github.com/AleutianAI/globals/services/globals/transform"
)

// =============================================================================
// Service Results
// =============================================================================

// Result is the outcome of transforming one module.
type Result struct {
	// FilePath is the path the module was read from, or the name given by
	// the caller for in-memory input.
	FilePath string `json:"file_path"`

	// Code is the rendered output. Equal to the input when Touched is false.
	Code string `json:"code"`

	// Touched reports whether any import, re-export or dynamic import was
	// rewritten.
	Touched bool `json:"touched"`

	// Cached is true when Code came from the output cache.
	Cached bool `json:"cached"`

	// Stats are the rewrite counts.
	Stats transform.Stats `json:"stats"`
}

// FileResult pairs a batch input with its result or error.
//
// Exactly one of Result and Err is set.
type FileResult struct {
	Path   string
	Result *Result
	Err    error
}

// ScannedImport is one import occurrence with its resolution.
type ScannedImport struct {
	ast.Import

	// Global is the expression the specifier maps to, if any.
	Global string `json:"global,omitempty"`

	// Resolved reports whether the specifier is in the map.
	Resolved bool `json:"resolved"`
}

// ScanResult lists the imports of one module.
type ScanResult struct {
	FilePath string          `json:"file_path"`
	Imports  []ScannedImport `json:"imports"`
}

// =============================================================================
// HTTP Request / Response Types
// =============================================================================

// TransformRequest is the body of POST /v1/globals/transform.
type TransformRequest struct {
	// FilePath names the module in diagnostics. Optional.
	FilePath string `json:"file_path"`

	// Code is the module source.
	Code string `json:"code" binding:"required"`

	// Names adds to (and overrides) the service's specifier map for this
	// request only.
	Names map[string]string `json:"names"`

	// Diff asks for a unified diff in the response.
	Diff bool `json:"diff"`
}

// TransformResponse is the body returned by POST /v1/globals/transform.
type TransformResponse struct {
	Result

	// Diff is the unified diff, when requested and the module was touched.
	Diff string `json:"diff,omitempty"`

	// LatencyMs is the server-side handling time.
	LatencyMs int64 `json:"latency_ms"`
}

// ScanRequest is the body of POST /v1/globals/scan.
type ScanRequest struct {
	FilePath string            `json:"file_path"`
	Code     string            `json:"code" binding:"required"`
	Names    map[string]string `json:"names"`
}

// ScanResponse is the body returned by POST /v1/globals/scan.
type ScanResponse struct {
	ScanResult

	Unresolved int `json:"unresolved"`
}

// HealthResponse is the body returned by GET /v1/globals/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Names   int    `json:"names"`
	Cache   bool   `json:"cache"`
	Version string `json:"version"`
}

// ErrorResponse is the JSON error body of every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
