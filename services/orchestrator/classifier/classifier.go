// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classifier provides issue-category classification for inbound
// support messages.
//
// The category routes a conversation to the right keyword handlers and
// seeds the generative responder's prompt. The default implementation is a
// deterministic keyword matcher; an LLM-backed classifier can be layered on
// top for graded confidence.
package classifier

import (
	"regexp"
	"strings"
)

// CategoryOther is the bucket for messages no pattern matches.
const CategoryOther = "other"

// Result is a classification outcome.
//
// Confidence is an integer percentage in [0,100]. The keyword classifier
// only ever reports 0 (no match) or 100 (pattern hit); LLM classifiers
// report graded values. Rationale is a short human-readable explanation
// kept for audit logs, never shown to the end user.
type Result struct {
	Category   string `json:"category"`
	Confidence int    `json:"confidence"`
	Rationale  string `json:"rationale"`
}

// Classifier assigns an issue category to a user message.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(text string) Result
}

// CategoryPatterns binds one category to its trigger patterns.
type CategoryPatterns struct {
	Category string
	Patterns []*regexp.Regexp
}

// defaultPatternSpecs defines the built-in category keyword inventory.
// Order matters - first category with a matching pattern wins, so the more
// specific product categories come before the generic ones.
var defaultPatternSpecs = []struct {
	category string
	patterns []string
}{
	{
		category: "login",
		patterns: []string{
			`\blog\s*in\b`,
			`\blogin\b`,
			`\bsign\s*in\b`,
			`\bpassword\b`,
			`\bcredential`,
			`\blocked\s+out\b`,
			`\baccount\s+(locked|blocked|disabled)\b`,
			`\bcan'?t\s+(access|get\s+in)\b`,
			`\bauthentication\b`,
		},
	},
	{
		category: "quickbooks",
		patterns: []string{
			`\bquickbooks\b`,
			`\bquick\s*books\b`,
			`\bqb\b`,
			`\bqbo\b`,
			`\bpayroll\b`,
			`\binvoice`,
			`\baccounting\s+(software|app)\b`,
		},
	},
	{
		category: "performance",
		patterns: []string{
			`\bslow\b`,
			`\bfreez(e|es|ing)\b`,
			`\bfroze\b`,
			`\blag(gy|ging)?\b`,
			`\bcrash(ed|es|ing)?\b`,
			`\bhang(s|ing)?\b`,
			`\bnot\s+responding\b`,
			`\btakes\s+forever\b`,
			`\bperformance\b`,
		},
	},
	{
		category: "printing",
		patterns: []string{
			`\bprint(er|ing)?\b`,
			`\bscan(ner|ning)?\b`,
			`\bpaper\s+jam\b`,
			`\btoner\b`,
			`\bprint\s+queue\b`,
		},
	},
	{
		category: "office",
		patterns: []string{
			`\boutlook\b`,
			`\bexcel\b`,
			`\bword\b`,
			`\bpowerpoint\b`,
			`\bonedrive\b`,
			`\bteams\b`,
			`\boffice\s*365\b`,
			`\bemail\b`,
			`\bmailbox\b`,
		},
	},
}

// KeywordClassifier matches messages against an ordered category pattern
// table. It is pure and deterministic with no failure mode: any input maps
// to exactly one category.
//
// Thread Safety: Safe for concurrent use after construction. The pattern
// table is never mutated.
type KeywordClassifier struct {
	table []CategoryPatterns
}

// NewKeywordClassifier builds a classifier from the compiled-in default
// pattern table.
func NewKeywordClassifier() *KeywordClassifier {
	table := make([]CategoryPatterns, 0, len(defaultPatternSpecs))
	for _, spec := range defaultPatternSpecs {
		cp := CategoryPatterns{Category: spec.category}
		for _, p := range spec.patterns {
			cp.Patterns = append(cp.Patterns, regexp.MustCompile(`(?i)`+p))
		}
		table = append(table, cp)
	}
	return &KeywordClassifier{table: table}
}

// NewKeywordClassifierFromTable builds a classifier from an explicit
// pattern table, typically loaded from a keywords YAML file. The table is
// used as-is; callers must not mutate it afterwards.
func NewKeywordClassifierFromTable(table []CategoryPatterns) *KeywordClassifier {
	return &KeywordClassifier{table: table}
}

// Classify returns the first category with a matching pattern, confidence
// 100. Empty or unmatched input returns CategoryOther with confidence 0.
func (c *KeywordClassifier) Classify(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Category: CategoryOther, Confidence: 0, Rationale: "empty message"}
	}
	for _, cp := range c.table {
		for _, p := range cp.Patterns {
			if p.MatchString(trimmed) {
				return Result{
					Category:   cp.Category,
					Confidence: 100,
					Rationale:  "matched pattern " + p.String(),
				}
			}
		}
	}
	return Result{Category: CategoryOther, Confidence: 0, Rationale: "no pattern matched"}
}

// Categories returns the category names in table order, for admin views.
func (c *KeywordClassifier) Categories() []string {
	out := make([]string, 0, len(c.table))
	for _, cp := range c.table {
		out = append(out, cp.Category)
	}
	return out
}
