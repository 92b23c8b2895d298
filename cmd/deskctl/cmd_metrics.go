// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/datatypes"
)

func runMetricsSummary(cmd *cobra.Command, args []string) {
	var summary datatypes.MetricsSummaryResponse
	decoded, err := adminGet("/v1/metrics/summary", &summary)
	if err != nil {
		log.Fatalf("Failed to fetch the metrics summary: %v", err)
	}
	if !decoded {
		return
	}

	fmt.Println("Conversation Metrics:")
	fmt.Println("------------------------------------------------------------------")
	fmt.Printf("Conversations started: %d  ended: %d  active: %d\n",
		summary.ConversationsStarted, summary.ConversationsEnded, summary.ActiveConversations)
	fmt.Printf("Messages: %d  (rule: %d, fallback: %d)\n",
		summary.MessagesTotal, summary.RuleMatches, summary.FallbackCalls)
	fmt.Printf("Tokens used: %d  Errors: %d\n", summary.TokensUsed, summary.Errors)
	fmt.Printf("Automation rate: %.1f%%  Rule match rate: %.1f%%\n",
		summary.AutomationRate*100, summary.RuleMatchRate*100)

	printCountMap("Outcomes", summary.Outcomes)
	printCountMap("Categories", summary.Categories)
}

func printCountMap(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %s: %d\n", k, counts[k])
	}
}
