// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"time"
)

// Turn is one transcript entry. Role is "user" or "bot".
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// StateChange records one applied transition, including the final one
// recorded by Store.End.
type StateChange struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Trigger   Trigger   `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one support conversation.
//
// # Thread Safety
//
// Session itself is not synchronized. All mutation happens inside
// Store.With under the session's per-key lock; code outside the store only
// ever sees copies from Snapshot or List.
type Session struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`

	// Category is the classifier result from the first user message.
	Category string `json:"category"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	MessageCount            int `json:"message_count"`
	TroubleshootingAttempts int `json:"troubleshooting_attempts"`
	EscalationAttempts      int `json:"escalation_attempts"`

	// UserInfo collects details handed over during callback or ticket
	// collection (phone, preferred time, ticket description).
	UserInfo map[string]string `json:"user_info,omitempty"`

	// Transcript and StateHistory are append-only.
	Transcript   []Turn        `json:"transcript"`
	StateHistory []StateChange `json:"state_history"`
}

// newSession returns a GREETING session with initialized maps.
func newSession(sessionID string, now time.Time) *Session {
	return &Session{
		SessionID:      sessionID,
		State:          StateGreeting,
		CreatedAt:      now,
		LastActivityAt: now,
		UserInfo:       make(map[string]string),
	}
}

// AppendTurn records one transcript entry and touches LastActivityAt.
// User turns bump MessageCount.
func (s *Session) AppendTurn(role, text string, now time.Time) {
	s.Transcript = append(s.Transcript, Turn{Role: role, Text: text, Timestamp: now})
	s.LastActivityAt = now
	if role == "user" {
		s.MessageCount++
	}
}

// Transition applies a trigger through the transition table.
//
// Defined pairs append a StateChange, set the new state, touch
// LastActivityAt, and bump the attempt counters for the relevant triggers.
// Undefined pairs are logged at Warn and leave the session unchanged; the
// return value reports whether the transition was applied.
func (s *Session) Transition(trigger Trigger, now time.Time) bool {
	to, ok := Next(s.State, trigger)
	if !ok {
		logUndefined(s.SessionID, s.State, trigger)
		return false
	}
	s.recordChange(to, trigger, now)
	switch trigger {
	case TriggerStepAcknowledged, TriggerTroubleshootingStarted:
		s.TroubleshootingAttempts++
	case TriggerEscalationRequested, TriggerUserFrustrated, TriggerSolutionFailed:
		s.EscalationAttempts++
	}
	return true
}

// recordChange appends the history entry and moves the state. Used by both
// table transitions and lifecycle endings (End, Reset, sweep), which may
// move to a terminal state from anywhere.
func (s *Session) recordChange(to State, trigger Trigger, now time.Time) {
	s.StateHistory = append(s.StateHistory, StateChange{
		From:      s.State,
		To:        to,
		Trigger:   trigger,
		Timestamp: now,
	})
	s.State = to
	s.LastActivityAt = now
}

// clone deep-copies the session so store callers can hold snapshots without
// racing in-place mutation.
func (s *Session) clone() Session {
	out := *s
	out.UserInfo = make(map[string]string, len(s.UserInfo))
	for k, v := range s.UserInfo {
		out.UserInfo[k] = v
	}
	out.Transcript = append([]Turn(nil), s.Transcript...)
	out.StateHistory = append([]StateChange(nil), s.StateHistory...)
	return out
}
