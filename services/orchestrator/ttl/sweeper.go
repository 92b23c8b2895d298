// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/observability"
)

// =============================================================================
// Idle Sweeper Implementation
// =============================================================================

// Config holds configuration for the idle session sweeper.
//
// # Description
//
// Contains the settings for the background sweep cycle. Default values
// are provided via DefaultConfig().
//
// # Fields
//
//   - Interval: How often to run sweep cycles. Default: 15 minutes.
//   - IdleTimeout: Inactivity after which a session is abandoned.
//     Default: 30 minutes.
type Config struct {
	Interval    time.Duration
	IdleTimeout time.Duration
}

// DefaultConfig returns sensible default sweeper configuration.
//
// # Outputs
//
//   - Config: Interval 15 minutes, IdleTimeout 30 minutes.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		IdleTimeout: 30 * time.Minute,
	}
}

// Sweeper periodically ends idle conversations.
//
// # Description
//
// Manages the lifecycle of a background goroutine that periodically ends
// every session idle past the configured timeout. Uses the ticker + done
// channel pattern for graceful shutdown.
//
// # Fields
//
//   - store: Session store to sweep.
//   - collector: In-memory metrics collector. May be nil.
//   - metrics: Prometheus metrics. May be nil (tests).
//   - clock: Time source for idle checks.
//   - config: Sweeper configuration.
//   - done: Channel signaling shutdown request.
//   - mu: Mutex protecting running state.
//   - running: True if the sweep goroutine is active.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Sweeper struct {
	store     *conversation.Store
	collector *observability.Collector
	metrics   *observability.ConversationMetrics
	clock     Clock
	config    Config
	done      chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewSweeper creates a new idle session sweeper.
//
// # Inputs
//
//   - store: Session store to sweep. Must not be nil.
//   - collector: Collector to notify of abandoned conversations. May be nil.
//   - metrics: Prometheus metrics to update. May be nil.
//   - clock: Time source. Nil defaults to the wall clock.
//   - config: Sweeper configuration. Zero fields take defaults.
//
// # Outputs
//
//   - *Sweeper: Ready to Start().
func NewSweeper(
	store *conversation.Store,
	collector *observability.Collector,
	metrics *observability.ConversationMetrics,
	clock Clock,
	config Config,
) *Sweeper {
	if clock == nil {
		clock = RealClock{}
	}
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	return &Sweeper{
		store:     store,
		collector: collector,
		metrics:   metrics,
		clock:     clock,
		config:    config,
		done:      make(chan struct{}),
	}
}

// Start begins the background sweep loop.
//
// # Description
//
// Starts a goroutine that runs a sweep at the configured interval. The
// loop continues until Stop() is called or the context is cancelled.
//
// # Inputs
//
//   - ctx: Context for cancellation. When cancelled, the sweeper stops.
//
// # Outputs
//
//   - error: Non-nil if the sweeper is already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // Reset done channel for potential restart
	s.mu.Unlock()

	slog.Info("idle session sweeper starting",
		"interval", s.config.Interval.String(),
		"idle_timeout", s.config.IdleTimeout.String(),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop gracefully stops the sweeper.
//
// # Description
//
// Signals the sweep loop to stop. Safe to call multiple times.
//
// # Outputs
//
//   - error: Currently always nil.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil // Already stopped
	}

	slog.Info("idle session sweeper stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow triggers an immediate sweep cycle.
//
// # Description
//
// Performs a sweep immediately without waiting for the next scheduled
// interval. Useful for manual invocation or testing.
//
// # Inputs
//
//   - ctx: Context, currently unused by the sweep itself.
//
// # Outputs
//
//   - int: Number of sessions removed.
func (s *Sweeper) RunNow(ctx context.Context) int {
	_ = ctx
	return s.sweep()
}

// =============================================================================
// Internal Methods
// =============================================================================

// runLoop is the main sweep goroutine.
func (s *Sweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run an initial sweep immediately on start
	s.sweep()

	for {
		select {
		case <-ctx.Done():
			slog.Info("idle session sweeper stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("idle session sweeper stopped (stop requested)")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep performs a single sweep cycle and reports removals.
func (s *Sweeper) sweep() int {
	swept := s.store.SweepIdle(s.config.IdleTimeout, s.clock.Now())

	for _, sess := range swept {
		slog.Info("idle session abandoned",
			"session_id", sess.SessionID,
			"last_activity", sess.LastActivityAt,
			"messages", sess.MessageCount,
		)
		if s.collector != nil {
			s.collector.EndConversation(sess.SessionID, "abandoned")
		}
		if s.metrics != nil {
			s.metrics.SweepRemovalsTotal.Inc()
			s.metrics.ResolutionsTotal.WithLabelValues("abandoned").Inc()
		}
	}

	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.store.Len()))
	}

	if len(swept) > 0 {
		slog.Info("sweep cycle completed", "removed", len(swept))
	} else {
		slog.Debug("sweep cycle completed (no idle sessions)")
	}
	return len(swept)
}
