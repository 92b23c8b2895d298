// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval provides knowledge base lookup for the generative
// responder.
//
// Retrieved snippets only ever enrich the responder prompt. No retrieval
// backend is required: a deployment without Weaviate runs with zero
// snippets and everything else works the same.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// KnowledgeChunkClassName is the Weaviate class holding support articles
// split into retrievable chunks.
const KnowledgeChunkClassName = "KnowledgeChunk"

// Snippet is one retrieved knowledge fragment.
type Snippet struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Retriever searches the knowledge base.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
}

// WeaviateRetriever implements Retriever with a near-text query over the
// KnowledgeChunk class.
type WeaviateRetriever struct {
	client *weaviate.Client
}

// NewWeaviateRetriever wraps an existing Weaviate client.
func NewWeaviateRetriever(client *weaviate.Client) (*WeaviateRetriever, error) {
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	return &WeaviateRetriever{client: client}, nil
}

// Search performs semantic retrieval, returning snippets sorted by
// certainty descending.
func (r *WeaviateRetriever) Search(ctx context.Context, query string, limit int) ([]Snippet, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		limit = 3
	}

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "source"},
		{Name: "_additional { certainty }"},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(KnowledgeChunkClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("knowledge search error: %s", result.Errors[0].Message)
	}

	snippets := parseSnippets(result.Data)
	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Score > snippets[j].Score
	})

	slog.Debug("Retrieved knowledge snippets", "query", query, "count", len(snippets))
	return snippets, nil
}

// parseSnippets walks the untyped GraphQL response shape.
func parseSnippets(data map[string]models.JSONObject) []Snippet {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[KnowledgeChunkClassName].([]interface{})
	if !ok {
		return nil
	}

	snippets := make([]Snippet, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}
		s := Snippet{}
		if text, ok := m["text"].(string); ok {
			s.Text = text
		}
		if source, ok := m["source"].(string); ok {
			s.Source = source
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				s.Score = certainty
			}
		}
		if s.Text == "" {
			continue
		}
		snippets = append(snippets, s)
	}
	return snippets
}

// NoopRetriever returns no snippets. Used when no knowledge base is
// configured.
type NoopRetriever struct{}

// Search always returns an empty result.
func (NoopRetriever) Search(ctx context.Context, query string, limit int) ([]Snippet, error) {
	return nil, nil
}
