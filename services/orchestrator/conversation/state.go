// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation implements the session store and the conversation
// state machine.
//
// Every support conversation is a Session moving through a fixed set of
// States. State only ever changes through the transition table: handlers
// and the engine emit Triggers, and Transition decides whether the pair is
// defined. Undefined pairs are logged and ignored, never applied.
package conversation

import (
	"fmt"
	"log/slog"
)

// =============================================================================
// States
// =============================================================================

// State is a conversation phase. Zero value is StateGreeting.
type State int

const (
	// StateGreeting is the initial state of every new session.
	StateGreeting State = iota

	// StateIssueGathering means the bot is asking what the problem is.
	StateIssueGathering

	// StateTroubleshooting means the bot is walking the user through steps.
	StateTroubleshooting

	// StateAwaitingConfirmation means the bot asked "did that fix it?".
	StateAwaitingConfirmation

	// StateEscalationOptions means the bot offered human escalation paths.
	StateEscalationOptions

	// StateCallbackCollection means the bot is collecting callback details.
	StateCallbackCollection

	// StateTicketCollection means the bot is collecting ticket details.
	StateTicketCollection

	// StateResolved is terminal: the issue was fixed or handed off cleanly.
	StateResolved

	// StateEscalated is terminal: a human owns the conversation now.
	StateEscalated

	// StateAbandoned is terminal: the user went idle and the sweep ended it.
	StateAbandoned
)

var stateNames = map[State]string{
	StateGreeting:             "GREETING",
	StateIssueGathering:       "ISSUE_GATHERING",
	StateTroubleshooting:      "TROUBLESHOOTING",
	StateAwaitingConfirmation: "AWAITING_CONFIRMATION",
	StateEscalationOptions:    "ESCALATION_OPTIONS",
	StateCallbackCollection:   "CALLBACK_COLLECTION",
	StateTicketCollection:     "TICKET_COLLECTION",
	StateResolved:             "RESOLVED",
	StateEscalated:            "ESCALATED",
	StateAbandoned:            "ABANDONED",
}

// String returns the canonical upper-snake name of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalJSON encodes the state by name so API payloads and logs stay
// readable if the enum is ever reordered.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Terminal reports whether the state ends the conversation. Terminal
// sessions are removed from the store; their final state survives only in
// the history entry and metrics.
func (s State) Terminal() bool {
	switch s {
	case StateResolved, StateEscalated, StateAbandoned:
		return true
	}
	return false
}

// =============================================================================
// Triggers
// =============================================================================

// Trigger is an event that may move a session between states.
type Trigger int

const (
	// TriggerNone is the zero value; it never matches a transition.
	TriggerNone Trigger = iota

	// TriggerGreetingReceived fires on a short salutation in GREETING.
	TriggerGreetingReceived

	// TriggerIssueDescribed fires when the user states a concrete problem.
	TriggerIssueDescribed

	// TriggerTroubleshootingStarted restarts guided steps after a failed fix.
	TriggerTroubleshootingStarted

	// TriggerStepAcknowledged fires when the user confirms doing a step.
	TriggerStepAcknowledged

	// TriggerSolutionConfirmed fires when the user says the fix worked.
	TriggerSolutionConfirmed

	// TriggerSolutionFailed fires when the user says the fix did not work.
	TriggerSolutionFailed

	// TriggerUserFrustrated fires on frustration phrases mid-troubleshooting.
	TriggerUserFrustrated

	// TriggerEscalationRequested fires when the user asks for a human.
	TriggerEscalationRequested

	// TriggerCallbackRequested fires when the user picks the callback option.
	TriggerCallbackRequested

	// TriggerTicketRequested fires when the user picks the ticket option.
	TriggerTicketRequested

	// TriggerAgentTransfer fires when the user picks live chat with a human.
	TriggerAgentTransfer

	// TriggerInfoCollected fires when callback or ticket details are complete.
	TriggerInfoCollected

	// TriggerTimeout fires when the idle sweep abandons a session.
	TriggerTimeout

	// TriggerReset fires on an administrative session reset.
	TriggerReset
)

var triggerNames = map[Trigger]string{
	TriggerNone:                   "NONE",
	TriggerGreetingReceived:       "GREETING_RECEIVED",
	TriggerIssueDescribed:         "ISSUE_DESCRIBED",
	TriggerTroubleshootingStarted: "TROUBLESHOOTING_STARTED",
	TriggerStepAcknowledged:       "STEP_ACKNOWLEDGED",
	TriggerSolutionConfirmed:      "SOLUTION_CONFIRMED",
	TriggerSolutionFailed:         "SOLUTION_FAILED",
	TriggerUserFrustrated:         "USER_FRUSTRATED",
	TriggerEscalationRequested:    "ESCALATION_REQUESTED",
	TriggerCallbackRequested:      "CALLBACK_REQUESTED",
	TriggerTicketRequested:        "TICKET_REQUESTED",
	TriggerAgentTransfer:          "AGENT_TRANSFER",
	TriggerInfoCollected:          "INFO_COLLECTED",
	TriggerTimeout:                "TIMEOUT",
	TriggerReset:                  "RESET",
}

// String returns the canonical upper-snake name of the trigger.
func (t Trigger) String() string {
	if name, ok := triggerNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Trigger(%d)", int(t))
}

// MarshalJSON encodes the trigger by name.
func (t Trigger) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// =============================================================================
// Transition Table
// =============================================================================

type transitionKey struct {
	from    State
	trigger Trigger
}

// transitions is the complete state machine. Pairs absent from this map are
// undefined and leave the session unchanged.
var transitions = map[transitionKey]State{
	{StateGreeting, TriggerGreetingReceived}:    StateIssueGathering,
	{StateGreeting, TriggerIssueDescribed}:      StateTroubleshooting,
	{StateGreeting, TriggerEscalationRequested}: StateEscalationOptions,

	{StateIssueGathering, TriggerIssueDescribed}:      StateTroubleshooting,
	{StateIssueGathering, TriggerEscalationRequested}: StateEscalationOptions,

	{StateTroubleshooting, TriggerStepAcknowledged}:    StateTroubleshooting,
	{StateTroubleshooting, TriggerSolutionConfirmed}:   StateAwaitingConfirmation,
	{StateTroubleshooting, TriggerSolutionFailed}:      StateEscalationOptions,
	{StateTroubleshooting, TriggerUserFrustrated}:      StateEscalationOptions,
	{StateTroubleshooting, TriggerEscalationRequested}: StateEscalationOptions,

	{StateAwaitingConfirmation, TriggerSolutionConfirmed}:      StateResolved,
	{StateAwaitingConfirmation, TriggerSolutionFailed}:         StateEscalationOptions,
	{StateAwaitingConfirmation, TriggerTroubleshootingStarted}: StateTroubleshooting,

	{StateEscalationOptions, TriggerAgentTransfer}:     StateEscalated,
	{StateEscalationOptions, TriggerCallbackRequested}: StateCallbackCollection,
	{StateEscalationOptions, TriggerTicketRequested}:   StateTicketCollection,

	{StateCallbackCollection, TriggerInfoCollected}: StateResolved,

	{StateTicketCollection, TriggerInfoCollected}: StateEscalated,
}

// Next looks up the transition table. The second return is false when the
// (state, trigger) pair is undefined.
func Next(from State, trigger Trigger) (State, bool) {
	to, ok := transitions[transitionKey{from, trigger}]
	return to, ok
}

// logUndefined records a rejected transition attempt. Kept in one place so
// the Warn shape is uniform across Transition and Store.End.
func logUndefined(sessionID string, from State, trigger Trigger) {
	slog.Warn("Undefined state transition ignored",
		"session_id", sessionID,
		"state", from.String(),
		"trigger", trigger.String(),
	)
}
