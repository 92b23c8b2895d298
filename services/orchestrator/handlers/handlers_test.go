// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the orchestrator HTTP handlers

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/classifier"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/engine"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/rules"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticGenerator struct{}

func (staticGenerator) Generate(ctx context.Context, msg string, transcript []conversation.Turn, categoryHint string) (string, int) {
	return "Let me look into that for you.", 7
}

func newTestRouter(t *testing.T) (*gin.Engine, *conversation.Store, *observability.Collector) {
	t.Helper()
	store := conversation.NewStore()
	registry := rules.NewRegistry()
	rules.RegisterDefaults(registry, rules.DefaultConfig())
	collector := observability.NewCollector()

	eng, err := engine.New(store, classifier.NewKeywordClassifier(), registry, staticGenerator{}, nil, collector, nil)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/v1/webhook", HandleWebhook(eng))
	router.GET("/v1/sessions", ListSessions(store))
	router.GET("/v1/sessions/:sessionId", GetSession(store))
	router.DELETE("/v1/sessions/:sessionId", DeleteSession(store, collector))
	router.GET("/v1/metrics/summary", MetricsSummary(collector))
	router.GET("/health", HealthCheck)
	return router, store, collector
}

func postWebhook(t *testing.T, router *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Webhook Tests
// =============================================================================

func TestHandleWebhook_NewConversation(t *testing.T) {
	router, store, _ := newTestRouter(t)

	w := postWebhook(t, router, map[string]any{
		"message": "My QuickBooks is frozen and keeps crashing",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.ActionReply, resp.Action)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.Text)
	assert.Equal(t, 1, store.Len())
}

func TestHandleWebhook_EmptyBodyRejected(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := postWebhook(t, router, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleWebhook_MalformedJSONRejected(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/webhook", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleWebhook_ButtonPayloadOnly(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := postWebhook(t, router, map[string]any{
		"buttonPayload": "option_2",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleWebhook_ContinuesExistingSession(t *testing.T) {
	router, store, _ := newTestRouter(t)

	w := postWebhook(t, router, map[string]any{
		"message": "My QuickBooks is frozen and keeps crashing",
	})
	var first datatypes.WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = postWebhook(t, router, map[string]any{
		"sessionId": first.SessionID,
		"message":   "it is still doing the exact same thing",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var second datatypes.WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, store.Len())

	sess, ok := store.Get(first.SessionID)
	require.True(t, ok)
	assert.Equal(t, 2, sess.MessageCount)
}

// =============================================================================
// Session Administration Tests
// =============================================================================

func TestListSessions_Empty(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.SessionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.Empty(t, resp.Sessions)
}

func TestListSessions_ReturnsSummaries(t *testing.T) {
	router, _, _ := newTestRouter(t)

	postWebhook(t, router, map[string]any{"message": "My printer shows an error whenever I print"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.SessionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "printing", resp.Sessions[0].Category)
	assert.Equal(t, "TROUBLESHOOTING", resp.Sessions[0].State)
	assert.Equal(t, 1, resp.Sessions[0].MessageCount)
}

func TestGetSession_NotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions/no-such-session", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSession_ReturnsTranscript(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := postWebhook(t, router, map[string]any{"message": "My printer shows an error whenever I print"})
	var first datatypes.WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions/"+first.SessionID, nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var sess conversation.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, first.SessionID, sess.SessionID)
	assert.Len(t, sess.Transcript, 2)
}

func TestDeleteSession_Idempotent(t *testing.T) {
	router, store, _ := newTestRouter(t)

	w := postWebhook(t, router, map[string]any{"message": "My printer shows an error whenever I print"})
	var first datatypes.WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/sessions/"+first.SessionID, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["reset"])
	assert.Equal(t, 0, store.Len())

	// Second delete still answers 200, with reset=false.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/v1/sessions/"+first.SessionID, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["reset"])
}

func TestDeleteSession_EndsConversationInCollector(t *testing.T) {
	router, _, collector := newTestRouter(t)

	w := postWebhook(t, router, map[string]any{"message": "My printer shows an error whenever I print"})
	var first datatypes.WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.Equal(t, int64(1), collector.Summary().ActiveConversations)

	w = httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/sessions/"+first.SessionID, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	summary := collector.Summary()
	assert.Equal(t, int64(0), summary.ActiveConversations)
	assert.Equal(t, int64(1), summary.ConversationsEnded)
	assert.Equal(t, int64(1), summary.Outcomes["abandoned"])

	// The idempotent second delete must not double-count.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/v1/sessions/"+first.SessionID, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), collector.Summary().ConversationsEnded)
}

// =============================================================================
// Metrics Summary Tests
// =============================================================================

func TestMetricsSummary(t *testing.T) {
	router, _, _ := newTestRouter(t)

	postWebhook(t, router, map[string]any{"message": "My QuickBooks is frozen and keeps crashing"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/metrics/summary", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.MetricsSummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ConversationsStarted)
	assert.Equal(t, int64(1), resp.MessagesTotal)
	assert.Equal(t, int64(1), resp.FallbackCalls)
	assert.Equal(t, int64(1), resp.Categories["quickbooks"])
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck_ReturnsOK(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}
