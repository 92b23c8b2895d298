// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianDesk/services/llm"
)

// =============================================================================
// KeywordClassifier Tests
// =============================================================================

func TestKeywordClassifier_Categories(t *testing.T) {
	c := NewKeywordClassifier()

	cases := []struct {
		name     string
		text     string
		category string
	}{
		{"login phrase", "I can't log in to my account", "login"},
		{"password", "my password expired again", "login"},
		{"locked out", "I'm locked out of the portal", "login"},
		{"quickbooks", "QuickBooks won't open the company file", "quickbooks"},
		{"qb abbreviation", "QB keeps asking me to update", "quickbooks"},
		{"performance slow", "everything is really slow today", "performance"},
		{"performance crash", "the app crashed twice this morning", "performance"},
		{"printing", "the printer shows a paper jam", "printing"},
		{"scanner", "my scanner isn't detected", "printing"},
		{"office outlook", "Outlook won't send email", "office"},
		{"office excel", "Excel formulas are broken", "office"},
		{"no match", "my chair squeaks", CategoryOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.text)
			if got.Category != tc.category {
				t.Errorf("Classify(%q).Category = %q, want %q", tc.text, got.Category, tc.category)
			}
			wantConfidence := 100
			if tc.category == CategoryOther {
				wantConfidence = 0
			}
			if got.Confidence != wantConfidence {
				t.Errorf("Classify(%q).Confidence = %d, want %d", tc.text, got.Confidence, wantConfidence)
			}
		})
	}
}

func TestKeywordClassifier_EmptyInput(t *testing.T) {
	c := NewKeywordClassifier()

	for _, text := range []string{"", "   ", "\n\t"} {
		got := c.Classify(text)
		if got.Category != CategoryOther || got.Confidence != 0 {
			t.Errorf("Classify(%q) = %+v, want other/0", text, got)
		}
	}
}

func TestKeywordClassifier_CaseInsensitive(t *testing.T) {
	c := NewKeywordClassifier()

	if got := c.Classify("PASSWORD RESET PLEASE"); got.Category != "login" {
		t.Errorf("uppercase input should classify as login, got %q", got.Category)
	}
}

func TestKeywordClassifier_FirstCategoryWins(t *testing.T) {
	c := NewKeywordClassifier()

	// "password" (login) and "quickbooks" both present; login comes first
	// in the table so it must win.
	got := c.Classify("I forgot my QuickBooks password")
	if got.Category != "login" {
		t.Errorf("expected first-listed category login, got %q", got.Category)
	}
}

func TestKeywordClassifier_Deterministic(t *testing.T) {
	c := NewKeywordClassifier()
	text := "outlook is slow and the printer is jammed"

	first := c.Classify(text)
	for i := 0; i < 10; i++ {
		if got := c.Classify(text); got != first {
			t.Fatalf("classification not deterministic: %+v vs %+v", got, first)
		}
	}
}

// =============================================================================
// Keywords Config Tests
// =============================================================================

func TestParseKeywords(t *testing.T) {
	data := []byte(`
categories:
  - name: vpn
    patterns:
      - '\bvpn\b'
      - '\btunnel\b'
  - name: hardware
    patterns:
      - '\blaptop\b'
`)
	table, err := ParseKeywords(data)
	if err != nil {
		t.Fatalf("ParseKeywords failed: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(table))
	}

	c := NewKeywordClassifierFromTable(table)
	if got := c.Classify("the VPN tunnel keeps dropping"); got.Category != "vpn" {
		t.Errorf("expected vpn, got %q", got.Category)
	}
	if got := c.Classify("my laptop screen flickers"); got.Category != "hardware" {
		t.Errorf("expected hardware, got %q", got.Category)
	}
	if got := c.Classify("unrelated"); got.Category != CategoryOther {
		t.Errorf("expected other, got %q", got.Category)
	}
}

func TestParseKeywords_Invalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no categories", "categories: []"},
		{"unnamed category", "categories:\n  - patterns: ['\\bx\\b']"},
		{"no patterns", "categories:\n  - name: empty"},
		{"bad regex", "categories:\n  - name: broken\n    patterns: ['[unclosed']"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseKeywords([]byte(tc.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// =============================================================================
// LLMClassifier Tests
// =============================================================================

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (llm.Result, error) {
	if s.err != nil {
		return llm.Result{}, s.err
	}
	return llm.Result{Text: s.reply, TokensUsed: 10}, nil
}

func TestLLMClassifier_Success(t *testing.T) {
	stub := &stubLLM{reply: `{"category":"login","confidence":85,"rationale":"mentions sign-in"}`}
	c, err := NewLLMClassifier(stub, NewKeywordClassifier(), 60)
	if err != nil {
		t.Fatalf("NewLLMClassifier failed: %v", err)
	}

	got := c.Classify("I cannot get into my account")
	if got.Category != "login" || got.Confidence != 85 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestLLMClassifier_FallsBackOnError(t *testing.T) {
	stub := &stubLLM{err: errors.New("backend down")}
	c, err := NewLLMClassifier(stub, NewKeywordClassifier(), 60)
	if err != nil {
		t.Fatalf("NewLLMClassifier failed: %v", err)
	}

	got := c.Classify("my password expired")
	if got.Category != "login" {
		t.Errorf("fallback should classify by keywords, got %q", got.Category)
	}
}

func TestLLMClassifier_FallsBackOnLowConfidence(t *testing.T) {
	stub := &stubLLM{reply: `{"category":"performance","confidence":20,"rationale":"weak guess"}`}
	c, err := NewLLMClassifier(stub, NewKeywordClassifier(), 60)
	if err != nil {
		t.Fatalf("NewLLMClassifier failed: %v", err)
	}

	got := c.Classify("the printer is jammed")
	if got.Category != "printing" {
		t.Errorf("low-confidence reply should fall back to keywords, got %q", got.Category)
	}
}

func TestLLMClassifier_FallsBackOnUnknownCategory(t *testing.T) {
	stub := &stubLLM{reply: `{"category":"astrology","confidence":95,"rationale":"stars"}`}
	c, err := NewLLMClassifier(stub, NewKeywordClassifier(), 60)
	if err != nil {
		t.Fatalf("NewLLMClassifier failed: %v", err)
	}

	got := c.Classify("excel is broken")
	if got.Category != "office" {
		t.Errorf("unknown category should fall back to keywords, got %q", got.Category)
	}
}

func TestParseClassification(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
		want    string
	}{
		{"plain json", `{"category":"login","confidence":90,"rationale":"x"}`, false, "login"},
		{"fenced json", "```json\n{\"category\":\"office\",\"confidence\":70,\"rationale\":\"x\"}\n```", false, "office"},
		{"no json", "I think this is a login issue", true, ""},
		{"missing category", `{"confidence":90}`, true, ""},
		{"confidence out of range", `{"category":"login","confidence":150}`, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseClassification(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Category != tc.want {
				t.Errorf("category = %q, want %q", got.Category, tc.want)
			}
		})
	}
}
