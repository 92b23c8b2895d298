// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the HTTP handlers for the orchestrator service.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/engine"
)

// webhookTracer is the OpenTelemetry tracer for webhook handling.
var webhookTracer = otel.Tracer("aleutian.orchestrator.handlers")

// HandleWebhook processes one inbound chat message.
//
// # Description
//
// Binds and validates the webhook body, then hands it to the engine. The
// engine never returns an error; every failure downstream of validation
// becomes a user-safe reply, so this handler only answers 400 for a
// malformed request and 200 otherwise.
func HandleWebhook(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := webhookTracer.Start(c.Request.Context(), "HandleWebhook")
		defer span.End()

		var req datatypes.WebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("Webhook request failed to bind", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Warn("Webhook request failed validation", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		out := eng.HandleMessage(ctx, &req)
		c.JSON(http.StatusOK, out)
	}
}
