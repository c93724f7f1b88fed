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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all globals routes with the router.
//
// Description:
//
//	Registers all /v1/globals/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/globals/transform - Rewrite one module
//	POST /v1/globals/scan - List a module's imports and their resolution
//	GET  /v1/globals/health - Health check
//
// Example:
//
//	service := globals.NewService(globals.DefaultServiceConfig())
//	handlers := globals.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	globals.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	g := rg.Group("/globals")
	{
		g.POST("/transform", handlers.HandleTransform)
		g.POST("/scan", handlers.HandleScan)
		g.GET("/health", handlers.HandleHealth)
	}
}

// RegisterMetrics exposes the default Prometheus registry at /metrics.
func RegisterMetrics(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
