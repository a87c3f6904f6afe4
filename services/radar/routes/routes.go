// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/riskradarhq/riskradar/pkg/extensions"
	"github.com/riskradarhq/riskradar/services/radar/collector"
	"github.com/riskradarhq/riskradar/services/radar/handlers"
	"github.com/riskradarhq/riskradar/services/radar/middleware"
	"github.com/riskradarhq/riskradar/services/radar/scoring"
	"github.com/riskradarhq/riskradar/services/radar/telemetry"
)

// SetupRoutes registers every radar endpoint on the router.
//
// Health and metrics stay outside the authenticated group so probes
// and scrapers work without credentials. The /metrics route is only
// registered when the Prometheus exporter is active.
func SetupRoutes(router *gin.Engine, col collector.Collector, store *scoring.PolicyStore,
	opts extensions.ServiceOptions, version string) {

	router.GET("/healthz", handlers.HandleHealth(version))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	// API version 1 group
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(opts.AuthProvider, opts.AuditLogger))
	{
		v1.GET("/scan-pr", handlers.HandleScanPR(col, store, opts.AuditLogger))
	}
}
