// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStore_WithCreatesOnce(t *testing.T) {
	st := NewStore()
	now := time.Now()

	var firstCreated, secondCreated bool
	st.With("s1", now, func(s *Session, created bool) { firstCreated = created })
	st.With("s1", now, func(s *Session, created bool) { secondCreated = created })

	if !firstCreated {
		t.Error("first With should report created=true")
	}
	if secondCreated {
		t.Error("second With should report created=false")
	}
	if st.Len() != 1 {
		t.Errorf("expected 1 session, got %d", st.Len())
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	st := NewStore()
	now := time.Now()
	st.With("s1", now, func(s *Session, _ bool) {
		s.AppendTurn("user", "hello", now)
		s.UserInfo["phone"] = "555-0100"
	})

	snap, ok := st.Get("s1")
	if !ok {
		t.Fatal("session should exist")
	}
	snap.UserInfo["phone"] = "tampered"
	snap.Transcript[0].Text = "tampered"

	orig, _ := st.Get("s1")
	if orig.UserInfo["phone"] != "555-0100" {
		t.Error("mutating a snapshot must not affect the stored session")
	}
	if orig.Transcript[0].Text != "hello" {
		t.Error("mutating a snapshot transcript must not affect the stored session")
	}
}

func TestStore_End(t *testing.T) {
	st := NewStore()
	now := time.Now()
	st.With("s1", now, func(s *Session, _ bool) {
		s.AppendTurn("user", "it's fixed, thanks", now)
	})

	ended, ok := st.End("s1", StateResolved, TriggerSolutionConfirmed, now)
	if !ok {
		t.Fatal("End should succeed for a live session")
	}
	if ended.State != StateResolved {
		t.Errorf("final state = %v, want RESOLVED", ended.State)
	}
	last := ended.StateHistory[len(ended.StateHistory)-1]
	if last.From != StateGreeting || last.To != StateResolved {
		t.Errorf("final history entry %+v", last)
	}
	if _, ok := st.Get("s1"); ok {
		t.Error("ended session must be removed from the store")
	}
	if _, ok := st.End("s1", StateResolved, TriggerSolutionConfirmed, now); ok {
		t.Error("ending twice must return false")
	}
}

func TestStore_ResetIdempotent(t *testing.T) {
	st := NewStore()
	now := time.Now()
	st.With("s1", now, func(*Session, bool) {})

	if !st.Reset("s1", now) {
		t.Error("first reset should report true")
	}
	if st.Reset("s1", now) {
		t.Error("second reset should report false")
	}
	if st.Reset("never-existed", now) {
		t.Error("resetting an unknown session should report false")
	}
	if st.Len() != 0 {
		t.Errorf("store should be empty, got %d", st.Len())
	}
}

func TestStore_List(t *testing.T) {
	st := NewStore()
	base := time.Now()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("s%d", i)
		st.With(id, base.Add(time.Duration(i)*time.Second), func(*Session, bool) {})
	}

	list := st.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.Before(list[i-1].CreatedAt) {
			t.Error("List must be ordered by creation time")
		}
	}
}

func TestStore_SweepIdle(t *testing.T) {
	st := NewStore()
	base := time.Now()

	st.With("idle", base, func(*Session, bool) {})
	st.With("active", base, func(*Session, bool) {})
	st.With("active", base.Add(25*time.Minute), func(s *Session, _ bool) {
		s.AppendTurn("user", "still here", base.Add(25*time.Minute))
	})

	swept := st.SweepIdle(30*time.Minute, base.Add(31*time.Minute))
	if len(swept) != 1 {
		t.Fatalf("expected 1 swept session, got %d", len(swept))
	}
	if swept[0].SessionID != "idle" {
		t.Errorf("swept %q, want idle", swept[0].SessionID)
	}
	if swept[0].State != StateAbandoned {
		t.Errorf("swept state = %v, want ABANDONED", swept[0].State)
	}
	last := swept[0].StateHistory[len(swept[0].StateHistory)-1]
	if last.Trigger != TriggerTimeout {
		t.Errorf("swept trigger = %v, want TIMEOUT", last.Trigger)
	}
	if _, ok := st.Get("active"); !ok {
		t.Error("active session must survive the sweep")
	}
}

func TestStore_SweepIdle_SecondSweepFindsNothing(t *testing.T) {
	st := NewStore()
	base := time.Now()
	st.With("idle", base, func(*Session, bool) {})

	at := base.Add(time.Hour)
	if got := len(st.SweepIdle(30*time.Minute, at)); got != 1 {
		t.Fatalf("first sweep removed %d, want 1", got)
	}
	if got := len(st.SweepIdle(30*time.Minute, at)); got != 0 {
		t.Errorf("second sweep removed %d, want 0", got)
	}
}

// A sweep blocked behind an in-flight turn must observe the refreshed
// activity time, not the stale one from before the turn.
func TestStore_SweepIdle_InFlightTurnNotSwept(t *testing.T) {
	st := NewStore()
	base := time.Now()
	st.With("busy", base, func(*Session, bool) {})

	at := base.Add(time.Hour)
	entered := make(chan struct{})
	release := make(chan struct{})
	turnDone := make(chan struct{})
	go func() {
		defer close(turnDone)
		st.With("busy", at, func(s *Session, _ bool) {
			close(entered)
			<-release
			s.AppendTurn("user", "back again", at)
		})
	}()

	<-entered
	sweepDone := make(chan []Session, 1)
	go func() { sweepDone <- st.SweepIdle(30*time.Minute, at) }()
	time.Sleep(20 * time.Millisecond) // let the sweep reach the session lock
	close(release)
	<-turnDone

	if swept := <-sweepDone; len(swept) != 0 {
		t.Fatalf("session with an in-flight turn was swept: %v", swept)
	}
	if _, ok := st.Get("busy"); !ok {
		t.Error("session that just took a turn must survive the sweep")
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestStore_SameSessionSerialized(t *testing.T) {
	st := NewStore()
	now := time.Now()

	const turns = 100
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.With("s1", now, func(s *Session, _ bool) {
				s.AppendTurn("user", fmt.Sprintf("message %d", i), now)
			})
		}(i)
	}
	wg.Wait()

	snap, _ := st.Get("s1")
	if snap.MessageCount != turns {
		t.Errorf("MessageCount = %d, want %d (lost updates mean With is not serialized)",
			snap.MessageCount, turns)
	}
	if len(snap.Transcript) != turns {
		t.Errorf("transcript length = %d, want %d", len(snap.Transcript), turns)
	}
}

func TestStore_DifferentSessionsParallel(t *testing.T) {
	st := NewStore()
	now := time.Now()

	// s1 holds its lock until released; s2 must not be blocked by it.
	s1Entered := make(chan struct{})
	s1Release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		st.With("s1", now, func(*Session, bool) {
			close(s1Entered)
			<-s1Release
		})
	}()
	<-s1Entered

	go func() {
		st.With("s2", now, func(*Session, bool) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("s2 blocked behind s1's lock; sessions must proceed in parallel")
	}
	close(s1Release)
}

func TestStore_WithAfterEndStartsFresh(t *testing.T) {
	st := NewStore()
	now := time.Now()
	st.With("s1", now, func(s *Session, _ bool) {
		s.AppendTurn("user", "old conversation", now)
	})
	st.End("s1", StateResolved, TriggerSolutionConfirmed, now)

	var created bool
	st.With("s1", now, func(s *Session, c bool) {
		created = c
		if len(s.Transcript) != 0 {
			t.Error("messaging after end must start a fresh session")
		}
	})
	if !created {
		t.Error("With after End should report created=true")
	}
}
