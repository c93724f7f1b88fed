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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/globals/services/globals/ast"
)

// Version is reported by the health endpoint and the CLI.
const Version = "0.1.0"

// requestIDHeader carries a caller-supplied request ID.
const requestIDHeader = "X-Request-ID"

// Handlers serves the globals HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers backed by svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleTransform handles POST /v1/globals/transform.
//
// Description:
//
//	Rewrites the module in the request body. Names in the request are
//	layered over the service's specifier map for this request only.
//
// Response:
//
//	200 OK: TransformResponse
//	400 Bad Request: Malformed body or content that is not UTF-8
//	413 Request Entity Too Large: Module exceeds the parser limit
//	422 Unprocessable Entity: Module has syntax errors
func (h *Handlers) HandleTransform(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTransform")
	start := time.Now()

	var req TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	res, err := h.svc.TransformWithNames(c.Request.Context(), req.FilePath, []byte(req.Code), req.Names)
	if err != nil {
		logger.Warn("transform failed", slog.String("error", err.Error()))
		writeServiceError(c, err)
		return
	}

	resp := TransformResponse{Result: *res}
	if req.Diff && res.Touched {
		name := req.FilePath
		if name == "" {
			name = "input.js"
		}
		d, err := BuildUnifiedDiff(name, req.Code, res.Code)
		if err != nil {
			logger.Error("diff failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "failed to build diff: " + err.Error(),
				Code:  "DIFF_FAILED",
			})
			return
		}
		resp.Diff = d
	}
	resp.LatencyMs = time.Since(start).Milliseconds()

	logger.Debug("transform complete",
		slog.Bool("touched", res.Touched),
		slog.Bool("cached", res.Cached),
		slog.Int("rewrites", res.Stats.Total()),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleScan handles POST /v1/globals/scan.
//
// Response:
//
//	200 OK: ScanResponse
//	400 Bad Request: Malformed body
//	422 Unprocessable Entity: Module has syntax errors
func (h *Handlers) HandleScan(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleScan")

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	res, err := h.svc.Scan(c.Request.Context(), req.FilePath, []byte(req.Code), req.Names)
	if err != nil {
		logger.Warn("scan failed", slog.String("error", err.Error()))
		writeServiceError(c, err)
		return
	}

	resp := ScanResponse{ScanResult: *res}
	for _, imp := range res.Imports {
		if !imp.Resolved {
			resp.Unresolved++
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/globals/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Names:   len(h.svc.Names()),
		Cache:   h.svc.CacheEnabled(),
		Version: Version,
	})
}

// RateLimit returns middleware that allows perSecond requests per second
// with the given burst across all clients. A non-positive rate disables it.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// writeServiceError maps service errors to status codes.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ast.ErrSyntax):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "SYNTAX_ERROR"})
	case errors.Is(err, ast.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error(), Code: "FILE_TOO_LARGE"})
	case errors.Is(err, ast.ErrInvalidContent):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_CONTENT"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "CANCELED"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL_ERROR"})
	}
}

// getOrCreateRequestID returns the caller's X-Request-ID or a new UUID, and
// echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(requestIDHeader, id)
	return id
}
