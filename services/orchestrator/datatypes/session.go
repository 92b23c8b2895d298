// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// SessionSummary is the wire form of one session in GET /v1/sessions.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	State        string `json:"state"`
	Category     string `json:"category,omitempty"`
	MessageCount int    `json:"message_count"`
	CreatedAt    int64  `json:"created_at"`     // Unix milliseconds UTC
	LastActiveAt int64  `json:"last_active_at"` // Unix milliseconds UTC
}

// SessionListResponse is the body of GET /v1/sessions.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Count    int              `json:"count"`
}

// MetricsSummaryResponse is the body of GET /v1/metrics/summary.
//
// Rates are ratios in [0,1]. AutomationRate counts conversations that ended
// RESOLVED without a human transfer; RuleMatchRate counts messages answered
// by a rule handler rather than the generative fallback.
type MetricsSummaryResponse struct {
	ConversationsStarted int64            `json:"conversations_started"`
	ConversationsEnded   int64            `json:"conversations_ended"`
	ActiveConversations  int64            `json:"active_conversations"`
	MessagesTotal        int64            `json:"messages_total"`
	RuleMatches          int64            `json:"rule_matches"`
	FallbackCalls        int64            `json:"fallback_calls"`
	TokensUsed           int64            `json:"tokens_used"`
	Errors               int64            `json:"errors"`
	AutomationRate       float64          `json:"automation_rate"`
	RuleMatchRate        float64          `json:"rule_match_rate"`
	Outcomes             map[string]int64 `json:"outcomes"`
	Categories           map[string]int64 `json:"categories"`
}
