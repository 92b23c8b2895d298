// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rules implements the deterministic handler registry.
//
// Handlers answer the predictable part of support traffic (resolution
// confirmations, escalation picks, password resets, contact requests)
// without touching the LLM. Dispatch walks the registry in priority order
// and runs the first handler that claims the message; the fallback handler
// always claims, so every message gets exactly one handler.
//
// Handlers are pure: they never call external systems. Anything with side
// effects (closing the session, creating tickets, transferring to an
// agent) is declared on the Response and executed by the engine.
package rules

import (
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/datatypes"
)

// Context is the read-only view a handler gets of the conversation.
//
// Session is a snapshot copy; mutating it has no effect. LastBotMessage is
// the most recent assistant turn, used by option handlers to decide
// whether a bare "1" is an option pick or just a number.
type Context struct {
	Session        conversation.Session
	Category       string
	ButtonPayload  string
	LastBotMessage string
}

// SideEffectKind discriminates the SideEffect union.
type SideEffectKind string

const (
	// EffectCloseSession ends the session with the reason's final state.
	EffectCloseSession SideEffectKind = "close_session"

	// EffectShowQuickReplies attaches option buttons to the reply.
	EffectShowQuickReplies SideEffectKind = "show_quick_replies"

	// EffectTransferToAgent hands the conversation to a human queue.
	EffectTransferToAgent SideEffectKind = "transfer_to_agent"

	// EffectScheduleCallback sends collected details to the ticketing
	// backend as a callback request.
	EffectScheduleCallback SideEffectKind = "schedule_callback"

	// EffectCreateTicket sends collected details to the ticketing backend
	// as a new ticket.
	EffectCreateTicket SideEffectKind = "create_ticket"
)

// SideEffect is a declarative instruction to the engine. Which payload
// fields are meaningful depends on Kind.
type SideEffect struct {
	Kind SideEffectKind

	// Reason qualifies close_session ("resolved" or "escalated") and
	// transfer_to_agent.
	Reason string

	// Options carries the buttons for show_quick_replies.
	Options []datatypes.QuickReply

	// Fields carries collected user details for schedule_callback and
	// create_ticket (phone, preferred_time, description).
	Fields map[string]string
}

// Response is a handler's answer.
//
// Trigger is declarative: the engine feeds it through the transition
// table, and an undefined pair is simply not applied. Delegate true means
// the handler has no deterministic answer and the generative fallback
// should reply instead; Text and SideEffects are ignored in that case.
type Response struct {
	Text        string
	Trigger     conversation.Trigger
	SideEffects []SideEffect
	Delegate    bool
}

// Handler is one deterministic rule.
//
// CanHandle must be cheap and side-effect free; it runs for every message
// until a handler claims it. Handle runs at most once per message.
// Priority orders dispatch, lower first. Category optionally restricts a
// handler to one issue category; empty means any.
//
// Thread Safety: Implementations must be safe for concurrent use. All
// state a handler needs arrives through its arguments.
type Handler interface {
	CanHandle(msg string, rctx *Context) bool
	Handle(msg string, rctx *Context) Response
	Priority() int
	Category() string
}
