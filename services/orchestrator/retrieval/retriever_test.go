// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"testing"

	"github.com/weaviate/weaviate/entities/models"
)

func TestParseSnippets(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			KnowledgeChunkClassName: []interface{}{
				map[string]interface{}{
					"text":   "Restart the print spooler service.",
					"source": "kb/printing-101",
					"_additional": map[string]interface{}{
						"certainty": 0.91,
					},
				},
				map[string]interface{}{
					"text":   "Clear the print queue before retrying.",
					"source": "kb/printing-102",
					"_additional": map[string]interface{}{
						"certainty": 0.85,
					},
				},
				// Malformed entries are skipped, not fatal.
				"not an object",
				map[string]interface{}{"source": "kb/empty-text"},
			},
		},
	}

	snippets := parseSnippets(data)
	if len(snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(snippets))
	}
	if snippets[0].Text != "Restart the print spooler service." {
		t.Errorf("unexpected first snippet: %+v", snippets[0])
	}
	if snippets[0].Score != 0.91 {
		t.Errorf("score = %v, want 0.91", snippets[0].Score)
	}
}

func TestParseSnippets_EmptyShapes(t *testing.T) {
	cases := []map[string]models.JSONObject{
		nil,
		{},
		{"Get": "wrong type"},
		{"Get": map[string]interface{}{}},
		{"Get": map[string]interface{}{KnowledgeChunkClassName: "wrong type"}},
	}
	for i, data := range cases {
		if got := parseSnippets(data); len(got) != 0 {
			t.Errorf("case %d: expected no snippets, got %d", i, len(got))
		}
	}
}

func TestNoopRetriever(t *testing.T) {
	snippets, err := NoopRetriever{}.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("noop search must not fail: %v", err)
	}
	if len(snippets) != 0 {
		t.Errorf("noop search must return nothing, got %d", len(snippets))
	}
}

func TestNewWeaviateRetriever_NilClient(t *testing.T) {
	if _, err := NewWeaviateRetriever(nil); err == nil {
		t.Error("nil client must be rejected")
	}
}
