// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ticketing talks to the external ticket and callback system.
//
// The engine treats this package as best-effort: a failed ticket or
// callback becomes a user-safe "please call support" reply, never a closed
// session or a raw error.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Ticket is a support ticket to raise on the external system.
type Ticket struct {
	SessionID   string `json:"session_id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Contact     string `json:"contact,omitempty"`
}

// Callback is a callback request for the phone team.
type Callback struct {
	SessionID     string `json:"session_id"`
	Category      string `json:"category"`
	Phone         string `json:"phone"`
	PreferredTime string `json:"preferred_time"`
}

// Backend creates tickets and schedules callbacks. Both return the
// external system's reference id.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Backend interface {
	CreateTicket(ctx context.Context, t Ticket) (string, error)
	ScheduleCallback(ctx context.Context, c Callback) (string, error)
}

// BackendError carries the upstream HTTP status so callers can decide
// whether a retry makes sense. 429 and 5xx are retryable, other 4xx are
// terminal. Use errors.As to get at it.
type BackendError struct {
	StatusCode int
	Body       string
	Retryable  bool
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("ticketing backend returned %d: %s", e.StatusCode, e.Body)
}

func newBackendError(status int, body []byte) *BackendError {
	return &BackendError{
		StatusCode: status,
		Body:       strings.TrimSpace(string(body)),
		Retryable:  status == http.StatusTooManyRequests || status >= 500,
	}
}

// HTTPBackend posts JSON to a ticketing service. No retries here; the
// retry policy, if any, belongs to the caller guided by
// BackendError.Retryable.
type HTTPBackend struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewHTTPBackend builds a backend for the given base URL. token may be
// empty for unauthenticated dev deployments.
func NewHTTPBackend(baseURL, token string) (*HTTPBackend, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL must not be empty")
	}
	return &HTTPBackend{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
	}, nil
}

// CreateTicket implements Backend.
func (b *HTTPBackend) CreateTicket(ctx context.Context, t Ticket) (string, error) {
	id, err := b.post(ctx, "/tickets", t)
	if err != nil {
		return "", err
	}
	slog.Info("Created ticket", "session_id", t.SessionID, "ticket_id", id)
	return id, nil
}

// ScheduleCallback implements Backend.
func (b *HTTPBackend) ScheduleCallback(ctx context.Context, c Callback) (string, error) {
	id, err := b.post(ctx, "/callbacks", c)
	if err != nil {
		return "", err
	}
	slog.Info("Scheduled callback", "session_id", c.SessionID, "callback_id", id)
	return id, nil
}

func (b *HTTPBackend) post(ctx context.Context, path string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ticketing payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ticketing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ticketing request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ticketing response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newBackendError(resp.StatusCode, respBody)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse ticketing response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("ticketing response missing id")
	}
	return parsed.ID, nil
}
