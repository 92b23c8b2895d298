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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/observability"
)

func TestManualClock(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := NewManualClock(base)

	assert.Equal(t, base, clk.Now())

	clk.Advance(10 * time.Minute)
	assert.Equal(t, base.Add(10*time.Minute), clk.Now())

	clk.Set(base)
	assert.Equal(t, base, clk.Now())
}

func TestSweeper_RunNow_RemovesIdleOnly(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := NewManualClock(base)
	store := conversation.NewStore()
	collector := observability.NewCollector()

	// Idle session: last activity at base.
	store.With("idle", base, func(s *conversation.Session, created bool) {
		require.True(t, created)
	})
	collector.StartConversation("idle", "other", false)

	// Active session: touched 25 minutes after base.
	store.With("active", base.Add(25*time.Minute), func(s *conversation.Session, created bool) {
		require.True(t, created)
	})
	collector.StartConversation("active", "login", true)

	sw := NewSweeper(store, collector, nil, clk, Config{
		IdleTimeout: 30 * time.Minute,
	})

	// At base+31m only the idle session has crossed the timeout.
	clk.Advance(31 * time.Minute)
	removed := sw.RunNow(context.Background())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	_, ok := store.Get("idle")
	assert.False(t, ok)
	_, ok = store.Get("active")
	assert.True(t, ok)

	summary := collector.Summary()
	assert.Equal(t, int64(1), summary.ConversationsEnded)
	assert.Equal(t, int64(1), summary.Outcomes["abandoned"])

	// A second sweep at the same instant finds nothing.
	assert.Equal(t, 0, sw.RunNow(context.Background()))
}

func TestSweeper_RemovedExactlyOnce(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := NewManualClock(base)
	store := conversation.NewStore()
	collector := observability.NewCollector()

	store.With("s1", base, func(s *conversation.Session, created bool) {})
	collector.StartConversation("s1", "printing", true)

	sw := NewSweeper(store, collector, nil, clk, Config{IdleTimeout: time.Minute})

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, sw.RunNow(context.Background()))

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 0, sw.RunNow(context.Background()))

	summary := collector.Summary()
	assert.Equal(t, int64(1), summary.ConversationsEnded)
}

func TestSweeper_ConfigDefaults(t *testing.T) {
	sw := NewSweeper(conversation.NewStore(), nil, nil, nil, Config{})
	assert.Equal(t, 15*time.Minute, sw.config.Interval)
	assert.Equal(t, 30*time.Minute, sw.config.IdleTimeout)
	assert.NotNil(t, sw.clock)
}

func TestSweeper_StartStop(t *testing.T) {
	clk := NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	sw := NewSweeper(conversation.NewStore(), nil, nil, clk, Config{
		Interval:    time.Hour,
		IdleTimeout: time.Hour,
	})

	ctx := context.Background()
	require.NoError(t, sw.Start(ctx))

	err := sw.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, sw.Stop())
	require.NoError(t, sw.Stop()) // idempotent

	// Restart after stop is allowed.
	require.NoError(t, sw.Start(ctx))
	require.NoError(t, sw.Stop())
}
