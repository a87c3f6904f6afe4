// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the radar service.
//
// This file contains the scoring output types: per-rule results, the
// scan report, and the HTTP response envelope.
package datatypes

import "time"

// =============================================================================
// Rule Results
// =============================================================================

// RuleResult records one rule's evaluation against the collected
// signals. Every configured rule produces exactly one RuleResult per
// scan, triggered or not, so callers always see the full breakdown.
type RuleResult struct {
	// RuleID identifies the rule ("size", "secret_pattern", ...).
	RuleID string `json:"rule_id"`

	// Triggered is true when the rule's condition matched.
	Triggered bool `json:"triggered"`

	// Delta is the signed score contribution. Zero when not triggered.
	Delta int `json:"delta"`

	// Reason explains the outcome in one human-readable sentence,
	// including why a rule was skipped on missing data.
	Reason string `json:"reason"`
}

// =============================================================================
// Scan Report
// =============================================================================

// ScanReport is the scoring engine's sole output. It is never mutated
// after construction.
type ScanReport struct {
	// TotalScore is the clamped final score.
	TotalScore int `json:"total_score"`

	// Grade is the letter grade mapped from TotalScore.
	Grade string `json:"grade"`

	// RuleResults holds one entry per rule in evaluation order.
	RuleResults []RuleResult `json:"rule_results"`
}

// TriggeredCount returns how many rules fired.
func (r ScanReport) TriggeredCount() int {
	n := 0
	for _, rr := range r.RuleResults {
		if rr.Triggered {
			n++
		}
	}
	return n
}

// =============================================================================
// Response Envelope
// =============================================================================

// ScanResponse wraps a ScanReport with the identifying and descriptive
// metadata the HTTP API and CLI return to callers.
type ScanResponse struct {
	// ScanID uniquely identifies this scan for log correlation.
	ScanID string `json:"scan_id"`

	// Owner, Repo, Number identify the scanned pull request.
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"pr"`

	// Summary carries non-scoring PR metadata.
	Summary PRSummary `json:"summary"`

	// Signals echoes the collected inputs the report was scored from.
	Signals PRSignals `json:"signals"`

	// Report is the scoring outcome.
	Report ScanReport `json:"report"`

	// GeneratedAt is when the scan completed.
	GeneratedAt time.Time `json:"generated_at"`
}
