// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Store holds live sessions and serializes work per session.
//
// # Description
//
// Messages for the same session must be processed one at a time in receipt
// order, while different sessions proceed in parallel. The store keeps one
// mutex per session id inside a map guarded by an RWMutex: With locks only
// the session it targets, so a slow generative call in one conversation
// never stalls another.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Callbacks passed to With run
// under the session's per-key lock and must not call back into the store
// for the same session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *Session
	// fresh is true until the first With callback runs, so that caller
	// sees created=true exactly once.
	fresh bool
	// ended marks entries removed while a waiter was blocked on mu.
	ended bool
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*sessionEntry)}
}

// entryFor fetches or creates the entry for a session id.
func (st *Store) entryFor(sessionID string, now time.Time) *sessionEntry {
	st.mu.RLock()
	entry, ok := st.sessions[sessionID]
	st.mu.RUnlock()
	if ok {
		return entry
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if entry, ok = st.sessions[sessionID]; ok {
		return entry
	}
	entry = &sessionEntry{session: newSession(sessionID, now), fresh: true}
	st.sessions[sessionID] = entry
	slog.Debug("Created session", "session_id", sessionID)
	return entry
}

// With runs fn with exclusive access to the session, creating it in
// GREETING if absent. created reports whether this call created it. fn may
// block (the engine holds the lock across the generative call) without
// affecting other sessions.
//
// If the session was ended while this caller waited for the lock, fn runs
// on a fresh session under a new entry, matching what a user sees when they
// message again after their conversation was closed.
func (st *Store) With(sessionID string, now time.Time, fn func(s *Session, created bool)) {
	for {
		entry := st.entryFor(sessionID, now)
		entry.mu.Lock()
		if entry.ended {
			entry.mu.Unlock()
			continue
		}
		created := entry.fresh
		entry.fresh = false
		fn(entry.session, created)
		entry.mu.Unlock()
		return
	}
}

// Get returns a copy of the session, if present.
func (st *Store) Get(sessionID string) (Session, bool) {
	st.mu.RLock()
	entry, ok := st.sessions[sessionID]
	st.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.ended {
		return Session{}, false
	}
	return entry.session.clone(), true
}

// Snapshot is an alias of Get kept for call sites that read better with
// snapshot semantics spelled out.
func (st *Store) Snapshot(sessionID string) (Session, bool) {
	return st.Get(sessionID)
}

// List returns copies of all live sessions ordered by creation time.
func (st *Store) List() []Session {
	st.mu.RLock()
	entries := make([]*sessionEntry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	out := make([]Session, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if !entry.ended {
			out = append(out, entry.session.clone())
		}
		entry.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// End closes a session with a final state, bypassing the transition table.
//
// Ending is a lifecycle operation: "it's fixed, thanks" closes a session as
// RESOLVED from any state, so the table does not constrain it. The final
// StateChange is still recorded, then the entry is removed. Returns the
// ended session copy and false if the session did not exist.
func (st *Store) End(sessionID string, final State, trigger Trigger, now time.Time) (Session, bool) {
	st.mu.RLock()
	entry, ok := st.sessions[sessionID]
	st.mu.RUnlock()
	if !ok {
		return Session{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return st.endLocked(entry, sessionID, final, trigger, now)
}

// endLocked finalizes and removes an entry. The caller holds entry.mu.
func (st *Store) endLocked(entry *sessionEntry, sessionID string, final State, trigger Trigger, now time.Time) (Session, bool) {
	if entry.ended {
		return Session{}, false
	}
	entry.session.recordChange(final, trigger, now)
	entry.ended = true
	ended := entry.session.clone()

	st.mu.Lock()
	delete(st.sessions, sessionID)
	st.mu.Unlock()

	slog.Info("Session ended",
		"session_id", sessionID,
		"final_state", final.String(),
		"trigger", trigger.String(),
		"messages", ended.MessageCount,
	)
	return ended, true
}

// Reset removes a session administratively. Idempotent: resetting an
// unknown session returns false without error.
func (st *Store) Reset(sessionID string, now time.Time) bool {
	_, ok := st.End(sessionID, StateAbandoned, TriggerReset, now)
	return ok
}

// SweepIdle ends every session whose LastActivityAt is older than
// olderThan relative to now, and returns the ended sessions. Removal uses
// the same per-key locks as With, so a sweep never interleaves with an
// in-flight turn for the same session.
func (st *Store) SweepIdle(olderThan time.Duration, now time.Time) []Session {
	st.mu.RLock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	st.mu.RUnlock()

	var swept []Session
	for _, id := range ids {
		st.mu.RLock()
		entry, ok := st.sessions[id]
		st.mu.RUnlock()
		if !ok {
			continue
		}
		entry.mu.Lock()
		if entry.ended || now.Sub(entry.session.LastActivityAt) <= olderThan {
			entry.mu.Unlock()
			continue
		}
		// The entry lock is held from the idle check through removal, so
		// a turn waiting on the lock either refreshed the activity time
		// already or lands on a fresh session after the sweep.
		ended, ok := st.endLocked(entry, id, StateAbandoned, TriggerTimeout, now)
		entry.mu.Unlock()
		if ok {
			swept = append(swept, ended)
		}
	}
	return swept
}
