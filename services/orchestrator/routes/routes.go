// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/engine"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/observability"
)

// SetupRoutes wires the HTTP surface onto the router.
//
// The webhook is the public chat channel and stays open; the session and
// metrics administration routes sit behind the API key middleware, which
// passes everything through when adminKey is empty.
func SetupRoutes(router *gin.Engine, eng *engine.Engine, store *conversation.Store,
	collector *observability.Collector, adminKey string) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/webhook", handlers.HandleWebhook(eng))

		// Session administration routes
		admin := v1.Group("")
		admin.Use(middleware.APIKeyMiddleware(adminKey))
		{
			sessions := admin.Group("/sessions")
			{
				sessions.GET("", handlers.ListSessions(store))
				sessions.GET("/:sessionId", handlers.GetSession(store))
				sessions.DELETE("/:sessionId", handlers.DeleteSession(store, collector))
			}
			admin.GET("/metrics/summary", handlers.MetricsSummary(collector))
		}
	}
}
