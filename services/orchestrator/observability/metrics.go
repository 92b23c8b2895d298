// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics for the conversation engine.
//
// # Description
//
// Two layers live here. ConversationMetrics exports Prometheus series for
// dashboards and alerting. Collector keeps an in-memory running tally the
// admin summary endpoint reads back, mirroring what the Prometheus side
// counts but queryable without a Prometheus server.
//
// # Thread Safety
//
// Prometheus metric operations are thread-safe via the client's internal
// locking; Collector has its own mutex.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for conversation metrics
const conversationSubsystem = "conversation"

// ConversationMetrics holds all Prometheus metrics for the engine.
//
// # Fields
//
//   - ConversationsTotal: Counter of started conversations by category
//   - ResolutionsTotal: Counter of ended conversations by outcome
//   - TurnsTotal: Counter of processed messages by answer path
//   - LLMTokensTotal: Counter of generative token usage
//   - LLMCallsTotal: Counter of generative calls
//   - HandlerFaultsTotal: Counter of recovered handler panics by handler
//   - ActiveSessions: Gauge of live sessions
//   - SweepRemovalsTotal: Counter of sessions removed by the idle sweep
type ConversationMetrics struct {
	// ConversationsTotal counts started conversations.
	// Labels: category (login, quickbooks, performance, printing, office, other)
	ConversationsTotal *prometheus.CounterVec

	// ResolutionsTotal counts ended conversations.
	// Labels: outcome (resolved, escalated, abandoned)
	ResolutionsTotal *prometheus.CounterVec

	// TurnsTotal counts processed user messages.
	// Labels: path (rule, generative)
	TurnsTotal *prometheus.CounterVec

	// LLMTokensTotal counts tokens spent on generative replies.
	LLMTokensTotal prometheus.Counter

	// LLMCallsTotal counts generative calls, failed ones included.
	LLMCallsTotal prometheus.Counter

	// HandlerFaultsTotal counts recovered panics in rule handlers.
	// Labels: handler
	HandlerFaultsTotal *prometheus.CounterVec

	// ActiveSessions tracks live sessions in the store.
	ActiveSessions prometheus.Gauge

	// SweepRemovalsTotal counts sessions abandoned by the idle sweep.
	SweepRemovalsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of ConversationMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *ConversationMetrics

var initMetricsOnce sync.Once

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Idempotent: the default
// registry rejects duplicate registration, so the series are built once
// and later calls return the same instance.
func InitMetrics() *ConversationMetrics {
	initMetricsOnce.Do(registerMetrics)
	return DefaultMetrics
}

func registerMetrics() {
	DefaultMetrics = &ConversationMetrics{
		ConversationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: conversationSubsystem,
				Name:      "conversations_total",
				Help:      "Total conversations started, by issue category",
			},
			[]string{"category"},
		),

		ResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: conversationSubsystem,
				Name:      "resolutions_total",
				Help:      "Total conversations ended, by outcome",
			},
			[]string{"outcome"},
		),

		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: conversationSubsystem,
				Name:      "turns_total",
				Help:      "Total user messages processed, by answer path",
			},
			[]string{"path"},
		),

		LLMTokensTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: conversationSubsystem,
				Name:      "llm_tokens_total",
				Help:      "Total tokens spent on generative replies",
			},
		),

		LLMCallsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: conversationSubsystem,
				Name:      "llm_calls_total",
				Help:      "Total generative fallback calls",
			},
		),

		HandlerFaultsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: conversationSubsystem,
				Name:      "handler_faults_total",
				Help:      "Recovered panics in rule handlers",
			},
			[]string{"handler"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: conversationSubsystem,
				Name:      "active_sessions",
				Help:      "Number of live sessions in the store",
			},
		),

		SweepRemovalsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: conversationSubsystem,
				Name:      "sweep_removals_total",
				Help:      "Sessions abandoned by the idle sweep",
			},
		),
	}
}
