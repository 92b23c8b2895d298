// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Config Tests
// =============================================================================

func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	result := applyConfigDefaults(Config{})

	assert.Equal(t, 12310, result.Port, "default port should be 12310")
	assert.Equal(t, "ollama", result.LLMBackend, "default LLM backend should be ollama")
	assert.Equal(t, "aleutian-otel-collector:4317", result.OTelEndpoint)
	assert.True(t, result.EnableMetrics, "metrics should be enabled by default")
	assert.True(t, result.SweepEnabled, "idle sweep should be enabled by default")
	assert.Equal(t, 15*time.Minute, result.SweepInterval)
	assert.Equal(t, 30*time.Minute, result.IdleTimeout)
}

func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{
		Port:          8080,
		LLMBackend:    "openai",
		OTelEndpoint:  "custom-collector:4317",
		WeaviateURL:   "http://weaviate:8080",
		SweepInterval: time.Minute,
		IdleTimeout:   5 * time.Minute,
	}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, 8080, result.Port)
	assert.Equal(t, "openai", result.LLMBackend)
	assert.Equal(t, "custom-collector:4317", result.OTelEndpoint)
	assert.Equal(t, "http://weaviate:8080", result.WeaviateURL)
	assert.Equal(t, time.Minute, result.SweepInterval)
	assert.Equal(t, 5*time.Minute, result.IdleTimeout)
}

// =============================================================================
// Integration Tests
// =============================================================================

// TestNew_Integration builds the full service and drives a conversation
// through the router. The Ollama backend only needs a URL at construction
// time; the registry answers the deterministic turns without ever calling
// the model.
func TestNew_Integration(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")

	svc, err := New(Config{
		GinMode:    gin.TestMode,
		LLMBackend: "ollama",
	})
	require.NoError(t, err)
	router := svc.Router()
	require.NotNil(t, router)

	// Health first.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// A rule-matched message end to end: "resolved" closes the session
	// without touching the model backend.
	body, _ := json.Marshal(map[string]string{"message": "thanks, the problem is resolved now"})
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/v1/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "reply", resp["action"])
	assert.Equal(t, "RESOLVED", resp["state"])

	// Prometheus endpoint serves.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_InvalidRulesFileFails(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")

	_, err := New(Config{
		GinMode:   gin.TestMode,
		RulesFile: "/does/not/exist.yaml",
	})
	assert.Error(t, err)
}

func TestServiceImplementsInterface(t *testing.T) {
	var _ Service = (*service)(nil)
}
