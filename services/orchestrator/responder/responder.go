// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package responder wraps the generative fallback behind a never-fails
// surface.
//
// When no rule handler has a deterministic answer, the responder asks the
// LLM. Every failure mode (timeout, rate limit, backend error, empty
// reply) collapses to a fixed apology with zero token cost, so the engine
// never has to branch on responder errors.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianDesk/services/llm"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/retrieval"
)

var tracer = otel.Tracer("aleutian.orchestrator.responder")

// ApologyText is returned whenever the generative call cannot produce a
// usable answer.
const ApologyText = "I'm sorry, I'm having trouble answering that right now. " +
	"Could you rephrase, or say \"agent\" to reach a person?"

// systemPrompt is the support persona. One step at a time keeps replies
// usable inside a chat widget.
const systemPrompt = `You are a patient IT support assistant for small business customers.

Rules:
- Give ONE troubleshooting step at a time, then ask the user to try it and report back.
- Keep replies under 80 words, plain language, no jargon.
- Never invent company policies, prices, or phone numbers.
- If the problem sounds like it needs hands-on help, suggest saying "agent" to reach a person.`

// Config tunes the responder.
type Config struct {
	// Timeout bounds one generative call. Zero means 10s.
	Timeout time.Duration

	// RequestsPerSecond throttles calls across all sessions. Zero means 5.
	RequestsPerSecond float64

	// Burst is the limiter burst. Zero means 10.
	Burst int

	// MaxSnippets caps retrieved knowledge fragments in the prompt.
	// Zero means 3.
	MaxSnippets int

	// MaxTranscriptTurns caps how much history is replayed to the model.
	// Zero means 12.
	MaxTranscriptTurns int
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.MaxSnippets <= 0 {
		c.MaxSnippets = 3
	}
	if c.MaxTranscriptTurns <= 0 {
		c.MaxTranscriptTurns = 12
	}
}

// Responder generates fallback replies.
//
// Thread Safety: Safe for concurrent use. The rate limiter is shared
// across sessions on purpose: it protects the LLM backend, not any one
// conversation.
type Responder struct {
	client    llm.LLMClient
	retriever retrieval.Retriever
	limiter   *rate.Limiter
	cfg       Config
}

// New builds a Responder. retriever may be nil; retrieval is then skipped.
func New(client llm.LLMClient, retriever retrieval.Retriever, cfg Config) (*Responder, error) {
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	cfg.applyDefaults()
	if retriever == nil {
		retriever = retrieval.NoopRetriever{}
	}
	return &Responder{
		client:    client,
		retriever: retriever,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cfg:       cfg,
	}, nil
}

// Generate produces a reply to msg given the conversation so far.
//
// Never returns an error: any failure yields (ApologyText, 0). tokensUsed
// is the backend-reported or estimated cost of a successful call.
func (r *Responder) Generate(ctx context.Context, msg string, transcript []conversation.Turn, categoryHint string) (text string, tokensUsed int) {
	ctx, span := tracer.Start(ctx, "Responder.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.category", categoryHint))

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	if !r.limiter.Allow() {
		slog.Warn("Responder rate limit hit, returning apology")
		span.SetStatus(codes.Error, "rate limited")
		return ApologyText, 0
	}

	messages := r.buildMessages(ctx, msg, transcript, categoryHint)
	result, err := r.client.Chat(ctx, messages, llm.GenerationParams{})
	if err != nil {
		slog.Warn("Generative call failed, returning apology", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ApologyText, 0
	}
	reply := strings.TrimSpace(result.Text)
	if reply == "" {
		slog.Warn("Generative call returned empty reply, returning apology")
		span.SetStatus(codes.Error, "empty reply")
		return ApologyText, 0
	}
	span.SetAttributes(attribute.Int("llm.tokens_used", result.TokensUsed))
	return reply, result.TokensUsed
}

// buildMessages assembles system prompt, optional knowledge snippets, the
// recent transcript, and the current message.
func (r *Responder) buildMessages(ctx context.Context, msg string, transcript []conversation.Turn, categoryHint string) []llm.Message {
	system := systemPrompt
	if categoryHint != "" && categoryHint != "other" {
		system += "\n\nThe customer's issue was categorized as: " + categoryHint + "."
	}

	// Retrieval failures degrade to an unenriched prompt.
	snippets, err := r.retriever.Search(ctx, msg, r.cfg.MaxSnippets)
	if err != nil {
		slog.Debug("Knowledge retrieval failed, continuing without snippets", "error", err)
	}
	if len(snippets) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\nRelevant knowledge base excerpts:\n")
		for _, s := range snippets {
			sb.WriteString("- ")
			sb.WriteString(s.Text)
			sb.WriteString("\n")
		}
		system += sb.String()
	}

	messages := []llm.Message{{Role: "system", Content: system}}

	turns := transcript
	if len(turns) > r.cfg.MaxTranscriptTurns {
		turns = turns[len(turns)-r.cfg.MaxTranscriptTurns:]
	}
	for _, turn := range turns {
		role := "user"
		if turn.Role == "bot" {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}

	// The current message is appended only if the caller has not already
	// recorded it as the final transcript turn.
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" || turns[len(turns)-1].Text != msg {
		messages = append(messages, llm.Message{Role: "user", Content: msg})
	}
	return messages
}
