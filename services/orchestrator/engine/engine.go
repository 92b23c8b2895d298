// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine wires the conversation pipeline together.
//
// One inbound message flows through: session fetch-or-create, category
// classification (first message only), trigger detection, the rule handler
// registry, and the generative fallback. The engine owns every side effect
// a handler declares and is the only place sessions end. External failures
// never leave HandleMessage as errors; the caller always gets a reply.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/classifier"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/responder"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/rules"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/ticketing"
)

// engineTracer is the OpenTelemetry tracer for engine operations.
var engineTracer = otel.Tracer("aleutian.orchestrator.engine")

// Compile-time interface implementation check.
var _ Generator = (*responder.Responder)(nil)

// ticketingFailureText is shown when the ticketing backend rejects a
// callback or ticket request. The session stays open so the user can try
// again or pick a different option.
const ticketingFailureText = "I'm sorry, I couldn't complete that request automatically. " +
	"Please call our support line directly and a colleague will take care of it."

// =============================================================================
// Interfaces
// =============================================================================

// Generator produces a free-form reply when no rule handler claims a
// message.
//
// # Description
//
// The engine treats generation as infallible: implementations return an
// apology string rather than an error when the backing model is
// unavailable. responder.Responder is the production implementation.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, msg string, transcript []conversation.Turn, categoryHint string) (text string, tokensUsed int)
}

// =============================================================================
// Engine
// =============================================================================

// Engine processes one inbound chat message end to end.
//
// # Description
//
// Engine combines the session store, the keyword or LLM classifier, the
// rule handler registry, the generative fallback, and the ticketing
// backend. HandleMessage runs under the session's per-key lock, so two
// messages for the same session are applied in receipt order while
// different sessions proceed in parallel.
//
// # Fields
//
//   - store: Session store. Required.
//   - classifier: Issue category classifier. Required.
//   - registry: Rule handler registry. Required; must contain a total
//     fallback handler.
//   - generator: Generative fallback. Required.
//   - tickets: Ticketing backend. May be nil; callback and ticket side
//     effects then degrade to the user-safe failure reply.
//   - collector: In-memory metrics tally. May be nil.
//   - metrics: Prometheus metrics. May be nil.
//
// # Thread Safety
//
// All public methods are safe for concurrent use.
type Engine struct {
	store      *conversation.Store
	classifier classifier.Classifier
	registry   *rules.Registry
	generator  Generator
	tickets    ticketing.Backend
	collector  *observability.Collector
	metrics    *observability.ConversationMetrics
}

// New creates an Engine.
//
// # Inputs
//
//   - store: Session store. Must not be nil.
//   - cls: Classifier for the first user message. Must not be nil.
//   - registry: Handler registry. Must not be nil.
//   - gen: Generative fallback. Must not be nil.
//   - tickets: Ticketing backend. May be nil.
//   - collector: Metrics collector. May be nil.
//   - metrics: Prometheus metrics. May be nil.
//
// # Outputs
//
//   - *Engine: Ready for HandleMessage.
//   - error: Non-nil if a required dependency is missing.
func New(
	store *conversation.Store,
	cls classifier.Classifier,
	registry *rules.Registry,
	gen Generator,
	tickets ticketing.Backend,
	collector *observability.Collector,
	metrics *observability.ConversationMetrics,
) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if cls == nil {
		return nil, fmt.Errorf("engine: classifier is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("engine: registry is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("engine: generator is required")
	}
	return &Engine{
		store:      store,
		classifier: cls,
		registry:   registry,
		generator:  gen,
		tickets:    tickets,
		collector:  collector,
		metrics:    metrics,
	}, nil
}

// sessionEnd captures a deferred close_session side effect. Store.End
// takes the session's per-key lock, so it must run after With returns.
type sessionEnd struct {
	final   conversation.State
	trigger conversation.Trigger
	outcome string
}

// HandleMessage processes one inbound message and returns the reply.
//
// # Description
//
// Runs the full pipeline under the session's per-key lock: classify on
// create, append the user turn, detect and apply the conversational
// trigger, dispatch the handler registry, and either apply the matched
// handler's response and side effects or delegate to the generative
// fallback. A close_session side effect ends the session after all other
// effects have been applied.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - req: Validated webhook request. EnsureDefaults is applied here, so
//     an empty SessionID starts a new conversation.
//
// # Outputs
//
//   - *datatypes.WebhookResponse: Always non-nil. Action is "transfer"
//     when a handler requested a human hand-off, "reply" otherwise.
//     External failures surface as user-safe reply text, never as errors.
func (e *Engine) HandleMessage(ctx context.Context, req *datatypes.WebhookRequest) *datatypes.WebhookResponse {
	ctx, span := engineTracer.Start(ctx, "Engine.HandleMessage")
	defer span.End()

	req.EnsureDefaults()
	msg := req.Utterance()
	now := time.Now().UTC()
	span.SetAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.Int("message.length", len(msg)),
	)

	out := &datatypes.WebhookResponse{
		Action:    datatypes.ActionReply,
		SessionID: req.SessionID,
	}

	var end *sessionEnd
	e.store.With(req.SessionID, now, func(s *conversation.Session, created bool) {
		if created {
			result := e.classifier.Classify(msg)
			s.Category = result.Category
			span.SetAttributes(attribute.String("conversation.category", result.Category))
			if e.metrics != nil {
				e.metrics.ConversationsTotal.WithLabelValues(result.Category).Inc()
			}
		}

		lastBot := lastBotText(s.Transcript)
		s.AppendTurn("user", msg, now)
		if trigger, ok := conversation.DetectTrigger(msg, s.State); ok {
			s.Transition(trigger, now)
		}

		rctx := &rules.Context{
			Session:        *s,
			Category:       s.Category,
			ButtonPayload:  req.ButtonPayload,
			LastBotMessage: lastBot,
		}
		handler, name := e.registry.FindHandler(msg, rctx)
		resp := e.safeHandle(handler, name, msg, rctx, s.SessionID)
		span.SetAttributes(
			attribute.String("rules.handler", name),
			attribute.Bool("rules.delegated", resp.Delegate),
		)

		if resp.Delegate {
			e.generativeTurn(ctx, s, msg, out, created, now)
		} else {
			end = e.ruleTurn(ctx, s, resp, out, created, now)
		}

		out.SessionID = s.SessionID
		out.State = s.State.String()
	})

	if end != nil {
		if _, ok := e.store.End(req.SessionID, end.final, end.trigger, now); ok {
			out.State = end.final.String()
			if e.collector != nil {
				e.collector.EndConversation(req.SessionID, end.outcome)
			}
			if e.metrics != nil {
				e.metrics.ResolutionsTotal.WithLabelValues(end.outcome).Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.ActiveSessions.Set(float64(e.store.Len()))
	}
	return out
}

// =============================================================================
// Internal Methods
// =============================================================================

// safeHandle invokes the handler, converting a panic into a delegating
// response so one faulty rule cannot take down message processing.
func (e *Engine) safeHandle(h rules.Handler, name, msg string, rctx *rules.Context, sessionID string) (resp rules.Response) {
	if h == nil {
		// The default set always contains a total fallback; an empty
		// registry still gets a generative reply.
		return rules.Response{Delegate: true}
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Handler panicked, delegating to fallback",
				"handler", name,
				"panic", r,
				"session_id", sessionID,
			)
			if e.metrics != nil {
				e.metrics.HandlerFaultsTotal.WithLabelValues(name).Inc()
			}
			if e.collector != nil {
				e.collector.RecordError(sessionID)
			}
			resp = rules.Response{Delegate: true}
		}
	}()
	return h.Handle(msg, rctx)
}

// ruleTurn applies a deterministic handler response and its side effects.
// Returns the deferred session end, if the handler requested one.
func (e *Engine) ruleTurn(
	ctx context.Context,
	s *conversation.Session,
	resp rules.Response,
	out *datatypes.WebhookResponse,
	created bool,
	now time.Time,
) *sessionEnd {
	if resp.Trigger != conversation.TriggerNone {
		s.Transition(resp.Trigger, now)
	}
	s.AppendTurn("bot", resp.Text, now)
	out.Text = resp.Text

	if e.collector != nil {
		if created {
			e.collector.StartConversation(s.SessionID, s.Category, true)
		}
		e.collector.RecordMessage(s.SessionID, false, 0)
	}
	if e.metrics != nil {
		e.metrics.TurnsTotal.WithLabelValues("rule").Inc()
	}

	var end *sessionEnd
	ticketingFailed := false
	for _, effect := range resp.SideEffects {
		switch effect.Kind {
		case rules.EffectShowQuickReplies:
			out.QuickReplies = effect.Options
			if len(out.QuickReplies) > datatypes.MaxQuickReplies {
				out.QuickReplies = out.QuickReplies[:datatypes.MaxQuickReplies]
			}

		case rules.EffectTransferToAgent:
			out.Action = datatypes.ActionTransfer
			out.Transcript = toTranscript(s.Transcript)

		case rules.EffectScheduleCallback:
			if !e.scheduleCallback(ctx, s, effect.Fields, out) {
				ticketingFailed = true
			}

		case rules.EffectCreateTicket:
			if !e.createTicket(ctx, s, effect.Fields, out) {
				ticketingFailed = true
			}

		case rules.EffectCloseSession:
			end = closeFor(effect.Reason, resp.Trigger)

		default:
			slog.Warn("Unknown side effect kind ignored", "kind", string(effect.Kind))
		}
	}

	// A failed backend call keeps the session open so the user can retry
	// or pick another escalation option.
	if ticketingFailed {
		return nil
	}
	return end
}

// generativeTurn answers through the fallback responder. The user turn and
// any detected transition are already recorded, so a cancellation during
// the model call leaves the session consistent.
func (e *Engine) generativeTurn(
	ctx context.Context,
	s *conversation.Session,
	msg string,
	out *datatypes.WebhookResponse,
	created bool,
	now time.Time,
) {
	text, tokens := e.generator.Generate(ctx, msg, s.Transcript, s.Category)
	s.AppendTurn("bot", text, now)
	out.Text = text

	if e.collector != nil {
		if created {
			e.collector.StartConversation(s.SessionID, s.Category, false)
		}
		e.collector.RecordMessage(s.SessionID, true, tokens)
	}
	if e.metrics != nil {
		e.metrics.TurnsTotal.WithLabelValues("generative").Inc()
		e.metrics.LLMCallsTotal.Inc()
		e.metrics.LLMTokensTotal.Add(float64(tokens))
	}
}

// scheduleCallback sends collected callback details to the ticketing
// backend. Returns false on failure, after rewriting the reply to the
// user-safe failure text.
func (e *Engine) scheduleCallback(ctx context.Context, s *conversation.Session, fields map[string]string, out *datatypes.WebhookResponse) bool {
	ctx, span := engineTracer.Start(ctx, "Engine.scheduleCallback")
	defer span.End()

	mergeUserInfo(s, fields)
	if e.tickets == nil {
		span.SetStatus(codes.Error, "no ticketing backend configured")
		e.reportTicketingFailure(s.SessionID, "callback", nil, out)
		return false
	}

	id, err := e.tickets.ScheduleCallback(ctx, ticketing.Callback{
		SessionID:     s.SessionID,
		Category:      s.Category,
		Phone:         fields["phone"],
		PreferredTime: fields["preferred_time"],
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "callback scheduling failed")
		e.reportTicketingFailure(s.SessionID, "callback", err, out)
		return false
	}
	span.SetAttributes(attribute.String("ticketing.reference", id))
	out.Text += "\n\nYour reference number is " + id + "."
	return true
}

// createTicket sends collected ticket details to the ticketing backend.
// Returns false on failure, after rewriting the reply to the user-safe
// failure text.
func (e *Engine) createTicket(ctx context.Context, s *conversation.Session, fields map[string]string, out *datatypes.WebhookResponse) bool {
	ctx, span := engineTracer.Start(ctx, "Engine.createTicket")
	defer span.End()

	mergeUserInfo(s, fields)
	if e.tickets == nil {
		span.SetStatus(codes.Error, "no ticketing backend configured")
		e.reportTicketingFailure(s.SessionID, "ticket", nil, out)
		return false
	}

	id, err := e.tickets.CreateTicket(ctx, ticketing.Ticket{
		SessionID:   s.SessionID,
		Category:    s.Category,
		Description: fields["description"],
		Contact:     fields["contact"],
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticket creation failed")
		e.reportTicketingFailure(s.SessionID, "ticket", err, out)
		return false
	}
	span.SetAttributes(attribute.String("ticketing.reference", id))
	out.Text += "\n\nYour ticket reference is " + id + "."
	return true
}

// reportTicketingFailure logs the failure and swaps the reply for the
// user-safe text.
func (e *Engine) reportTicketingFailure(sessionID, kind string, err error, out *datatypes.WebhookResponse) {
	slog.Error("Ticketing backend call failed",
		"session_id", sessionID,
		"kind", kind,
		"error", err,
	)
	if e.collector != nil {
		e.collector.RecordError(sessionID)
	}
	out.Text = ticketingFailureText
	out.QuickReplies = nil
}

// closeFor maps a close_session reason onto the final state recorded by
// Store.End.
func closeFor(reason string, trigger conversation.Trigger) *sessionEnd {
	switch reason {
	case "resolved":
		return &sessionEnd{final: conversation.StateResolved, trigger: trigger, outcome: "resolved"}
	case "escalated":
		return &sessionEnd{final: conversation.StateEscalated, trigger: trigger, outcome: "escalated"}
	default:
		slog.Warn("Unknown close_session reason, ending as abandoned", "reason", reason)
		return &sessionEnd{final: conversation.StateAbandoned, trigger: trigger, outcome: "abandoned"}
	}
}

// mergeUserInfo folds collected detail fields into the session.
func mergeUserInfo(s *conversation.Session, fields map[string]string) {
	if s.UserInfo == nil {
		s.UserInfo = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		s.UserInfo[k] = v
	}
}

// lastBotText returns the most recent bot turn, or "".
func lastBotText(transcript []conversation.Turn) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == "bot" {
			return transcript[i].Text
		}
	}
	return ""
}

// toTranscript converts the internal transcript to the wire form attached
// to transfers.
func toTranscript(turns []conversation.Turn) []datatypes.TranscriptEntry {
	entries := make([]datatypes.TranscriptEntry, 0, len(turns))
	for _, t := range turns {
		entries = append(entries, datatypes.TranscriptEntry{
			Role:      t.Role,
			Text:      t.Text,
			Timestamp: t.Timestamp.UnixMilli(),
		})
	}
	return entries
}
