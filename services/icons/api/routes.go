// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers all icon service routes on the router.
func SetupRoutes(router *gin.Engine, h *Handlers) {
	router.GET("/health", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		icons := v1.Group("/icons")
		{
			icons.GET("/health", h.HandleHealth)
			icons.GET("/providers", h.HandleListProviders)
			icons.POST("/providers/:id/install", h.HandleInstall)
			icons.DELETE("/providers/:id", h.HandleRemove)
			icons.GET("/providers/:id/icons", h.HandleProviderIcons)
			icons.POST("/sync", h.HandleSync)
			icons.GET("/search", h.HandleSearch)
		}
	}
}
