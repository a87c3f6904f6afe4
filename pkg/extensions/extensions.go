// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for deployment-specific
// functionality.
//
// This package provides extension points that let hosted or enterprise
// deployments add capabilities without modifying the core scanning
// codebase. The open source version ships no-op or static defaults for
// every interface.
//
// # Design Philosophy
//
// The scanner is a fully functional local utility that works without
// any identity or compliance infrastructure. Deployments that need
// SSO-backed API auth or an external audit trail inject concrete
// implementations of these interfaces via ServiceOptions.
//
// # Extension Categories
//
//   - auth.go: API authentication (AuthProvider)
//   - audit.go: Scan audit logging (AuditLogger)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to the service constructor to enable deployment-specific
// features. All fields are optional; nil values are replaced with
// defaults when DefaultOptions() is used.
type ServiceOptions struct {
	// AuthProvider validates API tokens on incoming scan requests.
	// Default: NopAuthProvider (every request is the local user)
	AuthProvider AuthProvider

	// AuditLogger records scan events for compliance trails.
	// Default: SlogAuditLogger (events land in the service log)
	AuditLogger AuditLogger
}

// DefaultOptions returns ServiceOptions with open source defaults:
// no authentication, audit events written to the service log.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
		AuditLogger:  &SlogAuditLogger{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}
