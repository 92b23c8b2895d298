// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the webhook request and response contracts used by the
// chat channel (POST /v1/webhook). Session and transcript types live in
// session.go.
package datatypes

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrEmptyMessage is returned when a webhook request carries neither typed
// text nor a button payload.
var ErrEmptyMessage = errors.New("message or button_payload is required")

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single inbound message.
	// Oversized payloads are rejected before classification to prevent
	// memory exhaustion.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxQuickReplies is the maximum number of quick reply buttons a
	// response may carry. Chat widgets render at most a handful.
	MaxQuickReplies = 8
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for webhook datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks byte length (not rune count) against
// MaxMessageContentBytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxMessageContentBytes
}

// =============================================================================
// Webhook Request Types
// =============================================================================

// WebhookRequest represents an inbound chat message from the support widget.
//
// # Description
//
// WebhookRequest is the body of POST /v1/webhook. Each request carries one
// user utterance for an ongoing or new conversation. If SessionID is empty
// a new session is created and its ID is returned in the response.
//
// # Fields
//
//   - RequestID: Optional. Unique identifier for this request (UUID v4).
//     Generated server-side when absent. Used for tracing and audit logs.
//   - Timestamp: Optional. Unix timestamp in milliseconds (UTC) when the
//     widget produced the message. Populated server-side when absent.
//   - SessionID: Optional. Opaque string identifying the conversation,
//     chosen by the widget or its vendor. Empty means a new conversation;
//     a fresh UUID is minted server-side and returned in the response.
//   - Message: Required. The user's utterance, limited to 32KB.
//   - ButtonPayload: Optional. Machine-readable payload when the user
//     clicked a quick reply button instead of typing. When present it is
//     classified instead of Message text.
//
// # Validation
//
// Uses go-playground/validator:
//   - Message: required unless ButtonPayload is set, max 32768 bytes
//   - SessionID: opaque, at most 128 bytes
//
// # Examples
//
//	req := WebhookRequest{
//	    SessionID: "550e8400-e29b-41d4-a716-446655440000",
//	    Message:   "I can't log in to my account",
//	}
//
// # Limitations
//
//   - One utterance per request; batching is not supported
//   - Message content limited to 32KB (larger payloads rejected)
//
// # Assumptions
//
//   - The widget serializes sends per session (no concurrent sends for the
//     same user); the server still guards against interleaving
type WebhookRequest struct {
	RequestID     string `json:"requestId" validate:"omitempty,uuid4"`
	Timestamp     int64  `json:"timestamp" validate:"gte=0"`
	SessionID     string `json:"sessionId" validate:"omitempty,max=128"`
	Message       string `json:"message" validate:"maxbytes"`
	ButtonPayload string `json:"buttonPayload,omitempty"`
}

// Validate validates the WebhookRequest fields.
func (r *WebhookRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return err
	}
	if r.Message == "" && r.ButtonPayload == "" {
		return ErrEmptyMessage
	}
	return nil
}

// EnsureDefaults populates RequestID, Timestamp and SessionID if the widget
// did not provide them. Minting the session id here keeps anonymous first
// messages from sharing one session keyed on the empty string.
func (r *WebhookRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
}

// Utterance returns the text the pipeline should classify. Button clicks
// take precedence over typed text.
func (r *WebhookRequest) Utterance() string {
	if r.ButtonPayload != "" {
		return r.ButtonPayload
	}
	return r.Message
}

// =============================================================================
// Webhook Response Types
// =============================================================================

// Response actions. Reply keeps the conversation on the bot; Transfer hands
// it to a human queue along with the transcript.
const (
	ActionReply    = "reply"
	ActionTransfer = "transfer"
)

// QuickReply is a clickable suggestion rendered under the bot reply. The
// widget sends Payload back as buttonPayload when the user clicks it.
type QuickReply struct {
	Label   string `json:"label"`
	Payload string `json:"value"`
}

// WebhookResponse represents the bot's reply to one inbound message.
//
// # Description
//
// WebhookResponse is the body returned by POST /v1/webhook. Action is
// always "reply" or "transfer". On transfer the full transcript is attached
// so the human agent has context.
//
// # Fields
//
//   - Action: "reply" or "transfer".
//   - Text: The message to render to the user.
//   - SessionID: The conversation ID, echoed back (or newly minted).
//   - State: The conversation state after processing this message.
//   - QuickReplies: Optional suggestion buttons.
//   - Transcript: Present only when Action is "transfer".
type WebhookResponse struct {
	Action       string            `json:"action"`
	Text         string            `json:"text"`
	SessionID    string            `json:"sessionId"`
	State        string            `json:"state"`
	QuickReplies []QuickReply      `json:"quickReplies,omitempty"`
	Transcript   []TranscriptEntry `json:"transcript,omitempty"`
}

// TranscriptEntry is one turn of the conversation history as exposed over
// the API and attached to transfers.
type TranscriptEntry struct {
	Role      string `json:"role"` // "user" or "bot"
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds UTC
}
