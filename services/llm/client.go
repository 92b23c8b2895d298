// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for generative model backends.
//
// Every backend implements the LLMClient interface so the orchestrator can
// switch providers via configuration without touching the conversation
// logic. Token usage is reported alongside the generated text because the
// metrics layer tracks generative cost per conversation; backends that do
// not report usage estimate it (roughly 4 characters per token).
package llm

import "context"

// Message is a single chat turn sent to a backend.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// GenerationParams carries optional sampling parameters. Nil fields use
// backend defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Result is a completed generation with its token cost.
type Result struct {
	Text       string
	TokensUsed int
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	// Chat sends the full message history and returns the assistant reply.
	// Implementations must honor ctx cancellation and deadlines.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (Result, error)
}

// estimateTokens approximates token usage for backends that do not report
// it. One token per four characters is close enough for cost tracking.
func estimateTokens(text string) int {
	return len(text) / 4
}
