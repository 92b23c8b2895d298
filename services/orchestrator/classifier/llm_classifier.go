// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDesk/services/llm"
)

// classificationPrompt asks for strict JSON so the response can be parsed
// without scraping. Category names are injected from the keyword table so
// the two classifiers always agree on the vocabulary.
const classificationPrompt = `You are an issue classifier for an IT support desk.

Assign the user's message to exactly one of these categories:
%s

If none fits, use "other".

Respond with ONLY valid JSON (no markdown, no preamble):
{"category":"name","confidence":0-100,"rationale":"brief"}`

// llmClassification is the expected JSON shape of the model reply.
type llmClassification struct {
	Category   string `json:"category"`
	Confidence int    `json:"confidence"`
	Rationale  string `json:"rationale"`
}

// LLMClassifier classifies with a generative model and graded confidence.
//
// On any failure (transport error, malformed JSON, unknown category, or
// confidence below the threshold) it falls back to the keyword classifier,
// so callers always get a usable Result. Disabled deployments simply use
// the KeywordClassifier directly.
//
// Thread Safety: Safe for concurrent use after construction.
type LLMClassifier struct {
	client        llm.LLMClient
	fallback      *KeywordClassifier
	minConfidence int
	timeout       time.Duration
	categories    map[string]bool
	prompt        string
}

// NewLLMClassifier wraps an LLM client around a keyword fallback.
// minConfidence below 1 defaults to 60.
func NewLLMClassifier(client llm.LLMClient, fallback *KeywordClassifier, minConfidence int) (*LLMClassifier, error) {
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	if fallback == nil {
		return nil, fmt.Errorf("fallback must not be nil")
	}
	if minConfidence < 1 {
		minConfidence = 60
	}
	names := fallback.Categories()
	categories := make(map[string]bool, len(names)+1)
	for _, n := range names {
		categories[n] = true
	}
	categories[CategoryOther] = true
	return &LLMClassifier{
		client:        client,
		fallback:      fallback,
		minConfidence: minConfidence,
		timeout:       5 * time.Second,
		categories:    categories,
		prompt:        fmt.Sprintf(classificationPrompt, "- "+strings.Join(names, "\n- ")),
	}, nil
}

// Classify implements the Classifier interface.
func (c *LLMClassifier) Classify(text string) Result {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	result, err := c.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: c.prompt},
		{Role: "user", Content: text},
	}, llm.GenerationParams{})
	if err != nil {
		slog.Warn("LLM classification failed, using keyword fallback", "error", err)
		return c.fallback.Classify(text)
	}

	parsed, err := parseClassification(result.Text)
	if err != nil {
		slog.Warn("LLM classification unparseable, using keyword fallback",
			"error", err, "raw", result.Text)
		return c.fallback.Classify(text)
	}
	if !c.categories[parsed.Category] {
		slog.Warn("LLM returned unknown category, using keyword fallback",
			"category", parsed.Category)
		return c.fallback.Classify(text)
	}
	if parsed.Confidence < c.minConfidence {
		slog.Debug("LLM classification below confidence threshold, using keyword fallback",
			"category", parsed.Category, "confidence", parsed.Confidence)
		return c.fallback.Classify(text)
	}
	return Result{
		Category:   parsed.Category,
		Confidence: parsed.Confidence,
		Rationale:  parsed.Rationale,
	}
}

// parseClassification extracts the JSON object from a model reply. Models
// sometimes wrap JSON in code fences despite instructions, so the first
// balanced object is taken.
func parseClassification(raw string) (llmClassification, error) {
	var parsed llmClassification
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return parsed, fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return parsed, fmt.Errorf("invalid classification JSON: %w", err)
	}
	if parsed.Category == "" {
		return parsed, fmt.Errorf("classification missing category")
	}
	if parsed.Confidence < 0 || parsed.Confidence > 100 {
		return parsed, fmt.Errorf("confidence %d out of range", parsed.Confidence)
	}
	return parsed, nil
}
