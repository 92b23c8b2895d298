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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/observability"
)

// ListSessions returns summaries of every live session, oldest first.
func ListSessions(store *conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := store.List()
		summaries := make([]datatypes.SessionSummary, 0, len(sessions))
		for _, s := range sessions {
			summaries = append(summaries, summarize(s))
		}
		c.JSON(http.StatusOK, datatypes.SessionListResponse{
			Sessions: summaries,
			Count:    len(summaries),
		})
	}
}

// GetSession returns one full session, transcript and state history
// included.
func GetSession(store *conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		sess, ok := store.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// DeleteSession resets a session administratively. Idempotent: deleting an
// unknown session still answers 200, with reset=false. A removed session is
// closed out in the collector as abandoned, otherwise its live record would
// linger and inflate the active count.
func DeleteSession(store *conversation.Store, collector *observability.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		reset := store.Reset(id, time.Now().UTC())
		if reset && collector != nil {
			collector.EndConversation(id, "abandoned")
		}
		slog.Info("Session reset requested", "session_id", id, "reset", reset)
		c.JSON(http.StatusOK, gin.H{"reset": reset, "session_id": id})
	}
}

func summarize(s conversation.Session) datatypes.SessionSummary {
	return datatypes.SessionSummary{
		SessionID:    s.SessionID,
		State:        s.State.String(),
		Category:     s.Category,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt.UnixMilli(),
		LastActiveAt: s.LastActivityAt.UnixMilli(),
	}
}
