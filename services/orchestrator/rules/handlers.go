// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/datatypes"
)

// Handler priorities. Lower runs first. The gaps are deliberate so
// deployments can slot custom handlers between the built-ins.
const (
	PriorityResolutionConfirmed = 5
	PriorityProblemNotResolved  = 6
	PriorityAgentRequest        = 7
	PriorityInstantChat         = 8
	PriorityCallback            = 9
	PriorityTicket              = 10
	PriorityCallbackCollection  = 11
	PriorityTicketCollection    = 12
	PriorityContactRequest      = 13
	PriorityPasswordReset       = 15
	PriorityAppUpdate           = 16
	PriorityFallback            = 100
)

// escalationOptions are the three quick replies offered whenever the bot
// gives up on self-service.
func escalationOptions() []datatypes.QuickReply {
	return []datatypes.QuickReply{
		{Label: "1. Instant chat with an agent", Payload: "option_1"},
		{Label: "2. Request a callback", Payload: "option_2"},
		{Label: "3. Raise a support ticket", Payload: "option_3"},
	}
}

const escalationOptionsText = "I'm sorry I couldn't resolve this for you. Here's how we can get a person involved:\n" +
	"1. Instant chat with an agent\n" +
	"2. Request a callback\n" +
	"3. Raise a support ticket\n" +
	"Just reply with 1, 2 or 3."

func messageContainsAny(msg string, keywords []string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// botOfferedOptions reports whether the previous assistant turn presented
// the numbered escalation menu, which is what makes a bare "1"/"2"/"3" an
// option pick rather than noise.
func botOfferedOptions(rctx *Context) bool {
	lower := strings.ToLower(rctx.LastBotMessage)
	return strings.Contains(lower, "1.") && strings.Contains(lower, "2.") &&
		strings.Contains(lower, "3.")
}

// RegisterDefaults registers the built-in handler set, fallback included.
func RegisterDefaults(r *Registry, cfg Config) {
	r.Register(&ResolutionConfirmedHandler{cfg: cfg})
	r.Register(&ProblemNotResolvedHandler{cfg: cfg})
	r.Register(&AgentRequestHandler{cfg: cfg})
	r.Register(&InstantChatHandler{})
	r.Register(&CallbackHandler{})
	r.Register(&TicketHandler{})
	r.Register(&CallbackCollectionHandler{})
	r.Register(&TicketCollectionHandler{})
	r.Register(&ContactRequestHandler{cfg: cfg})
	r.Register(&PasswordResetHandler{cfg: cfg})
	r.Register(&AppUpdateHandler{cfg: cfg})
	r.Register(&FallbackHandler{})
}

// =============================================================================
// ResolutionConfirmedHandler (priority 5)
// =============================================================================

// ResolutionConfirmedHandler closes the session when the user says the
// problem is gone. "Resolved" beats everything else, so it has the lowest
// priority value.
type ResolutionConfirmedHandler struct {
	cfg Config
}

func (h *ResolutionConfirmedHandler) Name() string     { return "resolution_confirmed" }
func (h *ResolutionConfirmedHandler) Priority() int    { return PriorityResolutionConfirmed }
func (h *ResolutionConfirmedHandler) Category() string { return "" }

func (h *ResolutionConfirmedHandler) CanHandle(msg string, rctx *Context) bool {
	// "not fixed" contains "fixed"; the negated forms belong to the
	// not-resolved handler and must not be claimed here.
	if messageContainsAny(msg, h.cfg.NotResolvedKeywords) {
		return false
	}
	return messageContainsAny(msg, h.cfg.ResolutionKeywords)
}

func (h *ResolutionConfirmedHandler) Handle(msg string, rctx *Context) Response {
	return Response{
		Text:    "Great, glad that's sorted! I'm closing this conversation now. If anything else comes up, just message us again.",
		Trigger: conversation.TriggerSolutionConfirmed,
		SideEffects: []SideEffect{
			{Kind: EffectCloseSession, Reason: "resolved"},
		},
	}
}

// =============================================================================
// ProblemNotResolvedHandler (priority 6)
// =============================================================================

// ProblemNotResolvedHandler offers the escalation menu when the user says
// the suggested fix did not help.
type ProblemNotResolvedHandler struct {
	cfg Config
}

func (h *ProblemNotResolvedHandler) Name() string     { return "problem_not_resolved" }
func (h *ProblemNotResolvedHandler) Priority() int    { return PriorityProblemNotResolved }
func (h *ProblemNotResolvedHandler) Category() string { return "" }

func (h *ProblemNotResolvedHandler) CanHandle(msg string, rctx *Context) bool {
	return messageContainsAny(msg, h.cfg.NotResolvedKeywords)
}

func (h *ProblemNotResolvedHandler) Handle(msg string, rctx *Context) Response {
	// Mid-troubleshooting the table expects SOLUTION_FAILED; everywhere
	// else an explicit escalation request is the defined path.
	trigger := conversation.TriggerEscalationRequested
	switch rctx.Session.State {
	case conversation.StateTroubleshooting, conversation.StateAwaitingConfirmation:
		trigger = conversation.TriggerSolutionFailed
	}
	return Response{
		Text:    escalationOptionsText,
		Trigger: trigger,
		SideEffects: []SideEffect{
			{Kind: EffectShowQuickReplies, Options: escalationOptions()},
		},
	}
}

// =============================================================================
// AgentRequestHandler (priority 7)
// =============================================================================

// AgentRequestHandler reacts to explicit "let me talk to a human" phrasing
// with the same escalation menu.
type AgentRequestHandler struct {
	cfg Config
}

func (h *AgentRequestHandler) Name() string     { return "agent_request" }
func (h *AgentRequestHandler) Priority() int    { return PriorityAgentRequest }
func (h *AgentRequestHandler) Category() string { return "" }

func (h *AgentRequestHandler) CanHandle(msg string, rctx *Context) bool {
	return messageContainsAny(msg, h.cfg.AgentKeywords)
}

func (h *AgentRequestHandler) Handle(msg string, rctx *Context) Response {
	return Response{
		Text:    "Of course. " + escalationOptionsText,
		Trigger: conversation.TriggerEscalationRequested,
		SideEffects: []SideEffect{
			{Kind: EffectShowQuickReplies, Options: escalationOptions()},
		},
	}
}

// =============================================================================
// Option pick handlers (priorities 8-10)
// =============================================================================

// InstantChatHandler matches option 1 of the escalation menu and hands the
// conversation to a live agent.
type InstantChatHandler struct{}

func (h *InstantChatHandler) Name() string     { return "instant_chat" }
func (h *InstantChatHandler) Priority() int    { return PriorityInstantChat }
func (h *InstantChatHandler) Category() string { return "" }

func (h *InstantChatHandler) CanHandle(msg string, rctx *Context) bool {
	if rctx.ButtonPayload == "option_1" {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(msg))
	if strings.Contains(lower, "option 1") || strings.Contains(lower, "instant chat") ||
		strings.Contains(lower, "live chat") {
		return true
	}
	// A bare "1" counts only right after the menu was shown.
	return lower == "1" && botOfferedOptions(rctx)
}

func (h *InstantChatHandler) Handle(msg string, rctx *Context) Response {
	return Response{
		Text:    "Connecting you with the next available agent. They'll have the full conversation so far.",
		Trigger: conversation.TriggerAgentTransfer,
		SideEffects: []SideEffect{
			{Kind: EffectTransferToAgent, Reason: "user_chose_instant_chat"},
			{Kind: EffectCloseSession, Reason: "escalated"},
		},
	}
}

// CallbackHandler matches option 2 and starts callback detail collection.
type CallbackHandler struct{}

func (h *CallbackHandler) Name() string     { return "callback" }
func (h *CallbackHandler) Priority() int    { return PriorityCallback }
func (h *CallbackHandler) Category() string { return "" }

func (h *CallbackHandler) CanHandle(msg string, rctx *Context) bool {
	if rctx.ButtonPayload == "option_2" {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(msg))
	if strings.Contains(lower, "option 2") || strings.Contains(lower, "callback") ||
		strings.Contains(lower, "call me back") {
		return true
	}
	return lower == "2" && botOfferedOptions(rctx)
}

func (h *CallbackHandler) Handle(msg string, rctx *Context) Response {
	return Response{
		Text: "Happy to arrange a callback. Please share the phone number to call " +
			"and a time that suits you (for example: 555-0137, tomorrow after 2pm).",
		Trigger: conversation.TriggerCallbackRequested,
	}
}

// TicketHandler matches option 3 and starts ticket detail collection.
type TicketHandler struct{}

func (h *TicketHandler) Name() string     { return "ticket" }
func (h *TicketHandler) Priority() int    { return PriorityTicket }
func (h *TicketHandler) Category() string { return "" }

func (h *TicketHandler) CanHandle(msg string, rctx *Context) bool {
	if rctx.ButtonPayload == "option_3" {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(msg))
	if strings.Contains(lower, "option 3") || strings.Contains(lower, "ticket") {
		return true
	}
	return lower == "3" && botOfferedOptions(rctx)
}

func (h *TicketHandler) Handle(msg string, rctx *Context) Response {
	return Response{
		Text: "I'll raise a ticket for you. Please describe the issue in a sentence or two, " +
			"and include the best email or phone number for updates.",
		Trigger: conversation.TriggerTicketRequested,
	}
}

// =============================================================================
// Collection handlers (priorities 11-12, state gated)
// =============================================================================

// phoneRe is a best-effort grab of something phone-shaped: 7+ digits with
// optional separators and country code.
var phoneRe = regexp.MustCompile(`\+?\d[\d\s\-().]{6,}\d`)

// CallbackCollectionHandler owns every message while the session is in
// CALLBACK_COLLECTION: it either extracts the callback details or asks
// again.
type CallbackCollectionHandler struct{}

func (h *CallbackCollectionHandler) Name() string     { return "callback_collection" }
func (h *CallbackCollectionHandler) Priority() int    { return PriorityCallbackCollection }
func (h *CallbackCollectionHandler) Category() string { return "" }

func (h *CallbackCollectionHandler) CanHandle(msg string, rctx *Context) bool {
	return rctx.Session.State == conversation.StateCallbackCollection
}

func (h *CallbackCollectionHandler) Handle(msg string, rctx *Context) Response {
	phone := phoneRe.FindString(msg)
	if phone == "" {
		return Response{
			Text: "I couldn't spot a phone number in that. Could you send the number to call, " +
				"digits included? You can add a preferred time too.",
		}
	}
	preferred := strings.TrimSpace(strings.Replace(msg, phone, "", 1))
	if preferred == "" {
		preferred = "any time"
	}
	return Response{
		Text: fmt.Sprintf("Thanks! We'll call you at %s (%s). Closing this chat now; "+
			"the agent will see the full history.", phone, preferred),
		Trigger: conversation.TriggerInfoCollected,
		SideEffects: []SideEffect{
			{Kind: EffectScheduleCallback, Fields: map[string]string{
				"phone":          phone,
				"preferred_time": preferred,
			}},
			{Kind: EffectCloseSession, Reason: "resolved"},
		},
	}
}

// TicketCollectionHandler owns every message while the session is in
// TICKET_COLLECTION.
type TicketCollectionHandler struct{}

func (h *TicketCollectionHandler) Name() string     { return "ticket_collection" }
func (h *TicketCollectionHandler) Priority() int    { return PriorityTicketCollection }
func (h *TicketCollectionHandler) Category() string { return "" }

func (h *TicketCollectionHandler) CanHandle(msg string, rctx *Context) bool {
	return rctx.Session.State == conversation.StateTicketCollection
}

func (h *TicketCollectionHandler) Handle(msg string, rctx *Context) Response {
	description := strings.TrimSpace(msg)
	if len(strings.Fields(description)) < 3 {
		return Response{
			Text: "Could you add a little more detail? A sentence about what's happening " +
				"helps the engineer pick it up faster.",
		}
	}
	fields := map[string]string{"description": description}
	if contact := phoneRe.FindString(msg); contact != "" {
		fields["contact"] = contact
	}
	return Response{
		Text: "Your ticket has been raised. An engineer will be in touch, usually within " +
			"one business day. Closing this chat now.",
		Trigger: conversation.TriggerInfoCollected,
		SideEffects: []SideEffect{
			{Kind: EffectCreateTicket, Fields: fields},
			{Kind: EffectCloseSession, Reason: "escalated"},
		},
	}
}

// =============================================================================
// Static answer handlers (priorities 13-16)
// =============================================================================

// ContactRequestHandler answers "how do I reach support" with the static
// contact card.
type ContactRequestHandler struct {
	cfg Config
}

func (h *ContactRequestHandler) Name() string     { return "contact_request" }
func (h *ContactRequestHandler) Priority() int    { return PriorityContactRequest }
func (h *ContactRequestHandler) Category() string { return "" }

func (h *ContactRequestHandler) CanHandle(msg string, rctx *Context) bool {
	return messageContainsAny(msg, h.cfg.ContactKeywords)
}

func (h *ContactRequestHandler) Handle(msg string, rctx *Context) Response {
	return Response{Text: h.cfg.ContactCard}
}

// portalQuestion marks the password sub-dialogue in the transcript so the
// follow-up yes/no can be attributed to it.
const portalQuestion = "Are you registered on the SelfCare portal?"

// PasswordResetHandler runs a two-step sub-dialogue for password resets,
// entirely without the LLM: ask whether the user is registered on the
// SelfCare portal, then branch on yes/no.
type PasswordResetHandler struct {
	cfg Config
}

func (h *PasswordResetHandler) Name() string     { return "password_reset" }
func (h *PasswordResetHandler) Priority() int    { return PriorityPasswordReset }
func (h *PasswordResetHandler) Category() string { return "" }

func (h *PasswordResetHandler) CanHandle(msg string, rctx *Context) bool {
	if messageContainsAny(msg, h.cfg.PasswordKeywords) {
		return true
	}
	// Follow-up turn of the sub-dialogue.
	if !strings.Contains(rctx.LastBotMessage, portalQuestion) {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(msg))
	return lower == "yes" || lower == "no" || strings.HasPrefix(lower, "yes ") ||
		strings.HasPrefix(lower, "no ")
}

func (h *PasswordResetHandler) Handle(msg string, rctx *Context) Response {
	if strings.Contains(rctx.LastBotMessage, portalQuestion) {
		lower := strings.ToLower(strings.TrimSpace(msg))
		if lower == "yes" || strings.HasPrefix(lower, "yes ") {
			return Response{
				Text: "Great. Head to " + h.cfg.SelfCarePortalURL + ", click \"Forgot password\" " +
					"and follow the emailed link. The new password takes effect immediately. " +
					"Did that work for you?",
			}
		}
		return Response{
			Text: "No problem. You'll need to register first: open " + h.cfg.SelfCarePortalURL +
				" and choose \"Register\" with your company email. Once you're in, the " +
				"\"Forgot password\" option handles resets. Did that get you unblocked?",
		}
	}
	return Response{
		Text: "I can help with that. " + portalQuestion + " (yes/no)",
	}
}

// AppUpdateHandler answers update questions for known applications with a
// static walkthrough. Both an update keyword and an app name must appear.
type AppUpdateHandler struct {
	cfg Config
}

func (h *AppUpdateHandler) Name() string     { return "app_update" }
func (h *AppUpdateHandler) Priority() int    { return PriorityAppUpdate }
func (h *AppUpdateHandler) Category() string { return "" }

func (h *AppUpdateHandler) CanHandle(msg string, rctx *Context) bool {
	return messageContainsAny(msg, h.cfg.UpdateKeywords) &&
		messageContainsAny(msg, h.cfg.AppNames)
}

func (h *AppUpdateHandler) Handle(msg string, rctx *Context) Response {
	app := "the application"
	lower := strings.ToLower(msg)
	for _, name := range h.cfg.AppNames {
		if strings.Contains(lower, name) {
			app = strings.ToUpper(name[:1]) + name[1:]
			break
		}
	}
	return Response{
		Text: fmt.Sprintf("To update %s:\n"+
			"1. Close %s completely.\n"+
			"2. Open the Company Portal app and select %s under Updates.\n"+
			"3. Click Install and wait for the confirmation message.\n"+
			"4. Reopen %s.\n"+
			"Let me know if the update completes.", app, app, app, app),
	}
}

// =============================================================================
// FallbackHandler (priority 100)
// =============================================================================

// FallbackHandler always matches and delegates to the generative
// responder, which makes dispatch total.
type FallbackHandler struct{}

func (h *FallbackHandler) Name() string     { return "fallback" }
func (h *FallbackHandler) Priority() int    { return PriorityFallback }
func (h *FallbackHandler) Category() string { return "" }

func (h *FallbackHandler) CanHandle(msg string, rctx *Context) bool {
	return true
}

func (h *FallbackHandler) Handle(msg string, rctx *Context) Response {
	return Response{Delegate: true}
}
