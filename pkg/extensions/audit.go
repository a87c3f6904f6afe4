// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security-relevant event for compliance
// logging.
//
// # Event Categories
//
// Events are categorized by type for filtering and alerting:
//   - Authentication: "auth.failed"
//   - Scans: "scan.requested", "scan.completed", "scan.failed"
//   - Policy: "policy.reloaded", "policy.rejected"
//
// # Compliance Fields
//
// For audit trail integrity always populate UserID, Timestamp, and the
// resource fields. The resource for scan events is the pull request,
// identified as "owner/repo#number".
type AuditEvent struct {
	// EventType categorizes the event.
	// Format: "category.action" (e.g., "scan.completed")
	EventType string

	// Timestamp is when the event occurred (always UTC).
	// If zero, implementations set it to time.Now().UTC().
	Timestamp time.Time

	// UserID identifies who triggered the event.
	// Use "system" for automated actions.
	UserID string

	// ResourceType is the category of resource involved.
	// Examples: "pull_request", "policy"
	ResourceType string

	// ResourceID is the specific resource instance.
	// Examples: "octo/radar#7", "/etc/riskradar/policy.yaml"
	ResourceID string

	// Outcome indicates the result of the action.
	// Values: "success", "failure", "blocked", "error"
	Outcome string

	// Metadata holds additional event-specific data, such as the
	// final score and grade of a completed scan.
	Metadata map[string]any
}

// AuditLogger records security-relevant events.
//
// Implementations must be safe for concurrent use and must not block
// the scan path; buffer or drop rather than stall.
//
// # Open Source Behavior
//
// SlogAuditLogger writes events into the structured service log, which
// is sufficient for single-team deployments. Enterprise deployments
// ship events to SIEM systems instead.
type AuditLogger interface {
	// Log records one event. Implementations should not return an
	// error for transient delivery problems; the scan outcome never
	// depends on audit delivery.
	Log(ctx context.Context, event AuditEvent)
}

// NopAuditLogger discards all events.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) {}

// SlogAuditLogger writes audit events to the structured service log
// under an "audit" group.
type SlogAuditLogger struct{}

// Log emits the event at Info level.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	slog.InfoContext(ctx, "Audit event",
		slog.Group("audit",
			"event_type", event.EventType,
			"timestamp", event.Timestamp.Format(time.RFC3339),
			"user_id", event.UserID,
			"resource_type", event.ResourceType,
			"resource_id", event.ResourceID,
			"outcome", event.Outcome,
			"metadata", event.Metadata,
		),
	)
}

// Compile-time interface compliance checks.
var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
