// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"regexp"
	"strings"
)

// Keyword tables for the trigger heuristic. Order inside each table does
// not matter; the precedence across tables is fixed in DetectTrigger.
var (
	escalationPhrases = []string{
		"speak to a human", "talk to a human", "real person", "human agent",
		"speak to someone", "talk to someone", "speak to an agent",
		"talk to an agent", "customer service", "representative",
	}
	frustrationPhrases = []string{
		"this is ridiculous", "useless", "waste of time", "fed up",
		"not helping", "frustrated", "annoyed", "give up",
	}
	resolvedPhrases = []string{
		"that worked", "it works", "fixed", "solved", "resolved",
		"all good", "working now", "that did it", "problem solved",
	}
	notResolvedPhrases = []string{
		"didn't work", "did not work", "still broken", "still not working",
		"no luck", "same problem", "same issue", "not fixed", "still happening",
	}
	acknowledgedRe = regexp.MustCompile(`(?i)^(ok(ay)?|done|yes|yep|yeah|sure|did (that|it)|next)\b`)
	greetingRe     = regexp.MustCompile(`(?i)^(hi|hello|hey|good (morning|afternoon|evening)|greetings)\b`)

	callbackPhrases = []string{"option 2", "callback", "call me back", "call back"}
	ticketPhrases   = []string{"option 3", "ticket", "raise a ticket", "open a ticket"}
	agentPhrases    = []string{"option 1", "instant chat", "live chat", "chat now"}
)

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// DetectTrigger maps a user message to a trigger, given the current state.
//
// # Description
//
// This is a best-effort keyword heuristic, not NLU. It exists so the state
// machine advances on obvious signals even when no rule handler matches;
// the handlers themselves emit more specific triggers that take precedence
// in the engine. Returns false when nothing recognizable was said, which
// callers treat as "stay in the current state".
//
// # Limitations
//
//   - English keyword matching only
//   - Negation is handled only for the resolved/not-resolved pair
func DetectTrigger(message string, state State) (Trigger, bool) {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return TriggerNone, false
	}

	// Explicit escalation wins everywhere.
	if containsAny(text, escalationPhrases) {
		return TriggerEscalationRequested, true
	}

	switch state {
	case StateGreeting, StateIssueGathering:
		if greetingRe.MatchString(text) && len(strings.Fields(text)) <= 4 {
			return TriggerGreetingReceived, true
		}
		// A sentence of any substance is taken as an issue description.
		if len(strings.Fields(text)) >= 3 {
			return TriggerIssueDescribed, true
		}

	case StateTroubleshooting:
		if containsAny(text, frustrationPhrases) {
			return TriggerUserFrustrated, true
		}
		// Not-resolved must be checked before resolved: "not fixed"
		// contains "fixed".
		if containsAny(text, notResolvedPhrases) {
			return TriggerSolutionFailed, true
		}
		if containsAny(text, resolvedPhrases) {
			return TriggerSolutionConfirmed, true
		}
		if acknowledgedRe.MatchString(text) {
			return TriggerStepAcknowledged, true
		}

	case StateAwaitingConfirmation:
		if containsAny(text, notResolvedPhrases) {
			return TriggerSolutionFailed, true
		}
		if containsAny(text, resolvedPhrases) || acknowledgedRe.MatchString(text) {
			return TriggerSolutionConfirmed, true
		}

	case StateEscalationOptions:
		if containsAny(text, agentPhrases) || text == "1" {
			return TriggerAgentTransfer, true
		}
		if containsAny(text, callbackPhrases) || text == "2" {
			return TriggerCallbackRequested, true
		}
		if containsAny(text, ticketPhrases) || text == "3" {
			return TriggerTicketRequested, true
		}
	}

	return TriggerNone, false
}
