// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/observability"
)

// MetricsSummary returns the collector's running tally. This is the
// human-queryable counterpart of the Prometheus /metrics endpoint.
func MetricsSummary(collector *observability.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := collector.Summary()
		c.JSON(http.StatusOK, datatypes.MetricsSummaryResponse{
			ConversationsStarted: s.ConversationsStarted,
			ConversationsEnded:   s.ConversationsEnded,
			ActiveConversations:  s.ActiveConversations,
			MessagesTotal:        s.MessagesTotal,
			RuleMatches:          s.RuleMatches,
			FallbackCalls:        s.FallbackCalls,
			TokensUsed:           s.TokensUsed,
			Errors:               s.Errors,
			AutomationRate:       s.AutomationRate,
			RuleMatchRate:        s.RuleMatchRate,
			Outcomes:             s.Outcomes,
			Categories:           s.Categories,
		})
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
