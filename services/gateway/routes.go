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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all Vejviser routes with the router group.
//
// Endpoints:
//
//	POST /v1/vejviser/validate - Validate and normalize a recipe
//	GET  /v1/vejviser/health - Health and cache report
//	POST /v1/vejviser/admin/refresh - Force a catalog refresh
//	POST /v1/vejviser/admin/clear-cache - Drop all cached catalog data
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	vejviser := rg.Group("/vejviser")
	{
		vejviser.POST("/validate", handlers.HandleValidate)
		vejviser.GET("/health", handlers.HandleHealth)

		admin := vejviser.Group("/admin")
		{
			admin.POST("/refresh", handlers.HandleRefresh)
			admin.POST("/clear-cache", handlers.HandleClearCache)
		}
	}
}

// NewRouter builds the full gin engine: recovery middleware, the /v1
// API group and the Prometheus scrape endpoint.
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}
