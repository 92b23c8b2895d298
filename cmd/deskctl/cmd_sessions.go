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
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/datatypes"
)

// sessionView mirrors the server's session payload with the enum fields as
// plain strings so the CLI does not need the server's state machine types.
type sessionView struct {
	SessionID      string            `json:"session_id"`
	State          string            `json:"state"`
	Category       string            `json:"category"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	MessageCount   int               `json:"message_count"`
	UserInfo       map[string]string `json:"user_info,omitempty"`
	Transcript     []struct {
		Role      string    `json:"role"`
		Text      string    `json:"text"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"transcript"`
	StateHistory []struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Trigger string `json:"trigger"`
	} `json:"state_history"`
}

func runListSessions(cmd *cobra.Command, args []string) {
	var result datatypes.SessionListResponse
	decoded, err := adminGet("/v1/sessions", &result)
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	if !decoded {
		return
	}

	if result.Count == 0 {
		fmt.Println("No live sessions found.")
		return
	}

	fmt.Printf("Live Sessions (%d):\n", result.Count)
	fmt.Println("------------------------------------------------------------------")
	for _, s := range result.Sessions {
		lastActive := time.UnixMilli(s.LastActiveAt).UTC().Format(time.RFC3339)
		fmt.Printf("ID: %s\nState: %s  Category: %s  Messages: %d  Last active: %s\n\n",
			s.SessionID, s.State, s.Category, s.MessageCount, lastActive)
	}
}

func runShowSession(cmd *cobra.Command, args []string) {
	sessionId := args[0]

	var session sessionView
	decoded, err := adminGet("/v1/sessions/"+sessionId, &session)
	if err != nil {
		log.Fatalf("Failed to fetch session %s: %v", sessionId, err)
	}
	if !decoded {
		return
	}

	fmt.Printf("Session: %s\n", session.SessionID)
	fmt.Printf("State: %s  Category: %s  Messages: %d\n",
		session.State, session.Category, session.MessageCount)
	fmt.Printf("Created: %s  Last activity: %s\n",
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.LastActivityAt.UTC().Format(time.RFC3339))
	if len(session.UserInfo) > 0 {
		fmt.Println("Collected info:")
		for k, v := range session.UserInfo {
			fmt.Printf("  %s: %s\n", k, v)
		}
	}
	fmt.Println("------------------------------------------------------------------")
	for _, turn := range session.Transcript {
		fmt.Printf("[%s] %s: %s\n",
			turn.Timestamp.UTC().Format("15:04:05"), turn.Role, turn.Text)
	}
}

func runResetSession(cmd *cobra.Command, args []string) {
	sessionId := args[0]

	req, err := adminRequest(http.MethodDelete, "/v1/sessions/"+sessionId, nil)
	if err != nil {
		log.Fatalf("Failed to create reset request: %v", err)
	}
	resp, err := adminClient.Do(req)
	if err != nil {
		log.Fatalf("Failed to send reset request to the orchestrator: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("The orchestrator returned an error: %s", resp.Status)
	}

	var result struct {
		Reset     bool   `json:"reset"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatalf("Failed to parse response from the orchestrator: %v", err)
	}

	if result.Reset {
		fmt.Printf("Successfully reset session: %s\n", result.SessionID)
	} else {
		fmt.Printf("Session %s was not live; nothing to reset.\n", result.SessionID)
	}
}
