// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"log/slog"
	"sort"
)

// Registry holds handlers sorted by priority.
//
// # Thread Safety
//
// Registration happens once at startup; FindHandler is safe for concurrent
// use after that. Register is not safe to call concurrently with
// FindHandler.
type Registry struct {
	handlers []registered
}

type registered struct {
	handler Handler
	name    string
	// order preserves insertion order among equal priorities so dispatch
	// stays deterministic.
	order int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler and re-sorts by (priority, insertion order).
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, registered{
		handler: h,
		name:    handlerName(h),
		order:   len(r.handlers),
	})
	sort.SliceStable(r.handlers, func(i, j int) bool {
		if r.handlers[i].handler.Priority() != r.handlers[j].handler.Priority() {
			return r.handlers[i].handler.Priority() < r.handlers[j].handler.Priority()
		}
		return r.handlers[i].order < r.handlers[j].order
	})
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.handlers)
}

// Names returns handler names in dispatch order, for the admin endpoint
// and logs.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for _, reg := range r.handlers {
		out = append(out, reg.name)
	}
	return out
}

// FindHandler returns the first handler claiming the message, with its
// name for logging and metrics.
//
// A panic inside CanHandle is recovered, logged with the handler name, and
// treated as non-matching, so one broken rule cannot take down dispatch.
// Returns nil only when no handler matches, which cannot happen in a
// registry that includes the fallback handler.
func (r *Registry) FindHandler(msg string, rctx *Context) (Handler, string) {
	for _, reg := range r.handlers {
		if category := reg.handler.Category(); category != "" && category != rctx.Category {
			continue
		}
		if safeCanHandle(reg, msg, rctx) {
			return reg.handler, reg.name
		}
	}
	return nil, ""
}

func safeCanHandle(reg registered, msg string, rctx *Context) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Handler panicked in CanHandle, treating as non-matching",
				"handler", reg.name,
				"panic", fmt.Sprint(rec),
			)
			matched = false
		}
	}()
	return reg.handler.CanHandle(msg, rctx)
}

// handlerName derives a stable name from the handler type.
func handlerName(h Handler) string {
	type named interface{ Name() string }
	if n, ok := h.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}
