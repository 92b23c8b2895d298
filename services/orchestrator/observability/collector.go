// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"log/slog"
	"sync"
)

// ConversationRecord is the per-conversation tally the collector keeps
// while a conversation is live.
type ConversationRecord struct {
	Category          string
	Messages          int64
	RuleMatches       int64
	LLMCalls          int64
	TokensUsed        int64
	Errors            int64
	FirstTurnWasRule  bool
	Outcome           string
}

// Summary is the aggregate view returned by the admin endpoint.
type Summary struct {
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

// Collector keeps the running in-memory tally behind the metrics summary
// endpoint.
//
// # Description
//
// Passive: the engine calls in, nothing here runs goroutines.
// It tolerates the lifecycle edges the engine can produce: ending an
// unknown conversation is a logged no-op, and conversations that never
// end are eventually closed as "abandoned" by the idle sweep calling
// EndConversation.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	live map[string]*ConversationRecord

	started   int64
	ended     int64
	messages  int64
	rules     int64
	llmCalls  int64
	tokens    int64
	errors    int64
	resolved  int64
	automated int64

	outcomes   map[string]int64
	categories map[string]int64
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		live:       make(map[string]*ConversationRecord),
		outcomes:   make(map[string]int64),
		categories: make(map[string]int64),
	}
}

// StartConversation registers a new conversation. ruleMatched records
// whether the opening message was answered by a rule handler.
func (c *Collector) StartConversation(id, category string, ruleMatched bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.live[id]; exists {
		slog.Warn("StartConversation called twice for the same id", "session_id", id)
		return
	}
	c.live[id] = &ConversationRecord{Category: category, FirstTurnWasRule: ruleMatched}
	c.started++
	c.categories[category]++
}

// RecordMessage tallies one processed user message. llmCall true means the
// generative fallback answered; false means a rule handler did.
func (c *Collector) RecordMessage(id string, llmCall bool, tokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages++
	rec := c.live[id]
	if rec != nil {
		rec.Messages++
	}
	if llmCall {
		c.llmCalls++
		c.tokens += int64(tokens)
		if rec != nil {
			rec.LLMCalls++
			rec.TokensUsed += int64(tokens)
		}
		return
	}
	c.rules++
	if rec != nil {
		rec.RuleMatches++
	}
}

// RecordError tallies a processing error for a conversation.
func (c *Collector) RecordError(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors++
	if rec := c.live[id]; rec != nil {
		rec.Errors++
	}
}

// EndConversation closes the tally for a conversation with its outcome
// (resolved, escalated, abandoned). Ending an unknown or already-ended
// conversation is a logged no-op.
func (c *Collector) EndConversation(id, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.live[id]
	if !ok {
		slog.Warn("EndConversation for unknown conversation", "session_id", id, "outcome", outcome)
		return
	}
	delete(c.live, id)
	rec.Outcome = outcome
	c.ended++
	c.outcomes[outcome]++
	if outcome == "resolved" {
		c.resolved++
		// Automated means resolved without any human hand-off; a resolved
		// outcome here implies the bot closed it.
		c.automated++
	}
}

// AutomationRate is resolved-without-human over ended conversations, in
// [0,1]. Zero ended conversations yield 0.
func (c *Collector) AutomationRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.automationRateLocked()
}

func (c *Collector) automationRateLocked() float64 {
	if c.ended == 0 {
		return 0
	}
	return float64(c.automated) / float64(c.ended)
}

// RuleMatchRate is rule-answered messages over all messages, in [0,1].
func (c *Collector) RuleMatchRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ruleMatchRateLocked()
}

func (c *Collector) ruleMatchRateLocked() float64 {
	if c.messages == 0 {
		return 0
	}
	return float64(c.rules) / float64(c.messages)
}

// Summary returns a copy of the aggregate state.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcomes := make(map[string]int64, len(c.outcomes))
	for k, v := range c.outcomes {
		outcomes[k] = v
	}
	categories := make(map[string]int64, len(c.categories))
	for k, v := range c.categories {
		categories[k] = v
	}
	return Summary{
		ConversationsStarted: c.started,
		ConversationsEnded:   c.ended,
		ActiveConversations:  int64(len(c.live)),
		MessagesTotal:        c.messages,
		RuleMatches:          c.rules,
		FallbackCalls:        c.llmCalls,
		TokensUsed:           c.tokens,
		Errors:               c.errors,
		AutomationRate:       c.automationRateLocked(),
		RuleMatchRate:        c.ruleMatchRateLocked(),
		Outcomes:             outcomes,
		Categories:           categories,
	}
}
