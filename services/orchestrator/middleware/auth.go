// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// # Authentication Flow
//
// The admin surface is protected by a shared API key:
//
//	Request
//	   │
//	   ▼
//	APIKeyMiddleware
//	   │
//	   ├─► Read "X-API-Key" header
//	   │
//	   ├─► Constant-time compare against the configured key
//	   │
//	   └─► 401 on mismatch, Next() on match
//
// # Open Behavior
//
// When no key is configured the middleware passes every request through.
// This keeps local development and the webhook channel working without any
// authentication infrastructure.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader is the header carrying the shared admin key.
const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware creates a Gin middleware that checks the shared admin
// API key.
//
// # Description
//
// Compares the X-API-Key header against the configured key in constant
// time. An empty configured key disables the check entirely.
//
// # Inputs
//
//   - key: The expected API key. Empty disables authentication.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with a route group.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func APIKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		presented := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}
