// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the radar service.
//
// This package contains middleware for authentication and request
// processing. It integrates with the extensions package so that hosted
// deployments can swap in their own token validation.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header,
// validates it using the configured AuthProvider, and stores the resulting
// AuthInfo in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   └─► Store AuthInfo in context
//	           │
//	           ▼
//	       Handler (retrieves via GetAuthInfo)
//
// # Local Behavior
//
// When using NopAuthProvider (default), all requests are authenticated
// as "local-user" with admin privileges. This lets a laptop deployment
// run without any authentication infrastructure.
//
// # Hosted Behavior
//
// Hosted deployments configure a StaticTokenProvider via RADAR_API_TOKENS
// or plug in their own AuthProvider against an identity provider.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/riskradarhq/riskradar/pkg/extensions"
)

// =============================================================================
// Context Keys
// =============================================================================

// authInfoKey is the context key for storing AuthInfo.
// Using a dedicated key prevents collisions with other context values.
const authInfoKey = "riskradar_auth_info"

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated caller's identity in the Gin context.
//
// Called by AuthMiddleware after successful authentication. The stored
// AuthInfo can be retrieved by handlers via GetAuthInfo. Only valid for
// the current request; overwrites any previously set auth info.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated caller's identity from the
// Gin context.
//
// Returns nil if no AuthInfo is present (AuthMiddleware was not applied
// to the route, or it stored nil) or if the stored value has the wrong
// type.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware creates a Gin middleware that authenticates requests.
//
// # Description
//
// Extracts the bearer token from the Authorization header, validates it
// using the provided AuthProvider, and stores the resulting AuthInfo
// in the context for downstream handlers. Rejected requests are written
// to the audit log as "auth.failed" events.
//
// If the header is missing or malformed, the token passed to Validate
// is the empty string. NopAuthProvider accepts this and returns
// local-user; StaticTokenProvider rejects it.
//
// # Inputs
//
//   - provider: AuthProvider to validate tokens. Must not be nil.
//   - audit: AuditLogger for auth failures. May be nil to disable.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Examples
//
//	// Apply to route group
//	v1 := router.Group("/api/v1")
//	v1.Use(middleware.AuthMiddleware(opts.AuthProvider, opts.AuditLogger))
//
// # Limitations
//
//   - Only supports Bearer token authentication
//   - Does not cache validation results (validates every request)
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AuthMiddleware(provider extensions.AuthProvider, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			auditAuthFailure(c, audit, err)
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			// Provider failures (network issues, misconfiguration) also
			// deny access rather than failing open.
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}

		SetAuthInfo(c, authInfo)

		c.Next()
	}
}

// auditAuthFailure records a rejected request in the audit log.
func auditAuthFailure(c *gin.Context, audit extensions.AuditLogger, cause error) {
	if audit == nil {
		return
	}
	audit.Log(c.Request.Context(), extensions.AuditEvent{
		EventType:    "auth.failed",
		UserID:       "anonymous",
		ResourceType: "endpoint",
		ResourceID:   c.Request.URL.Path,
		Outcome:      "blocked",
		Metadata: map[string]any{
			"remote_ip": c.ClientIP(),
			"reason":    cause.Error(),
		},
	})
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// Parses the Authorization header expecting the format "Bearer <token>"
// and returns the empty string if the header is missing or malformed.
// The "Bearer" prefix is case-insensitive per RFC 7235. Surrounding
// whitespace on the token is trimmed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
