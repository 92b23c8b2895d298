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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	outputJSON bool

	rootCmd = &cobra.Command{
		Use:   "deskctl",
		Short: "A cli to administer a running AleutianDesk orchestrator",
		Long: `deskctl talks to the orchestrator's admin API over HTTP. Point it at a
				server with DESKD_URL (default http://localhost:12310) and, if the server
				was started with an admin key, set DESKD_ADMIN_API_KEY to match.`,
	}

	// --- Sessions ---
	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage live conversation sessions",
	}
	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List all live conversation sessions",
		Run:   runListSessions, // Defined in cmd_sessions.go
	}
	showSessionCmd = &cobra.Command{
		Use:   "show [session_id]",
		Short: "Print a session's full transcript and state",
		Args:  cobra.ExactArgs(1),
		Run:   runShowSession, // Defined in cmd_sessions.go
	}
	resetSessionCmd = &cobra.Command{
		Use:   "reset [session_id]",
		Short: "Reset a session so its next message starts a fresh conversation",
		Args:  cobra.ExactArgs(1),
		Run:   runResetSession, // Defined in cmd_sessions.go
	}

	// --- Metrics ---
	metricsCmd = &cobra.Command{
		Use:   "metrics",
		Short: "Show the orchestrator's conversation metrics summary",
		Run:   runMetricsSummary, // Defined in cmd_metrics.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false,
		"Print raw JSON responses instead of formatted output")

	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(listSessionsCmd)
	sessionsCmd.AddCommand(showSessionCmd)
	sessionsCmd.AddCommand(resetSessionCmd)

	rootCmd.AddCommand(metricsCmd)
}
