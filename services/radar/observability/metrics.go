// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the radar
// service.
//
// # Description
//
// Metrics cover the scan pipeline end to end:
//   - Scan counters (by outcome and grade)
//   - Scan latency histograms
//   - Per-rule trigger counters
//   - Final score distribution
//   - Policy reload counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/riskradarhq/riskradar/services/radar/datatypes"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "riskradar"

// Subsystem for scan pipeline metrics
const scanSubsystem = "scan"

// gradeNone is the grade label for scans that never produced a report.
const gradeNone = "none"

// ScanMetrics holds all Prometheus metrics for the scan pipeline.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring scan volume
// and scoring behavior. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type ScanMetrics struct {
	// ScansTotal counts scans by outcome and resulting grade.
	// Labels: outcome (success, not_found, ...), grade (A-F, none)
	ScansTotal *prometheus.CounterVec

	// ScanDurationSeconds measures full scan latency including
	// upstream collection.
	// Labels: outcome
	ScanDurationSeconds *prometheus.HistogramVec

	// RuleTriggeredTotal counts rule hits across all scans.
	// Labels: rule_id (size, secret_pattern, ...)
	RuleTriggeredTotal *prometheus.CounterVec

	// ScoreDistribution tracks where final scores land.
	ScoreDistribution prometheus.Histogram

	// PolicyReloadsTotal counts hot policy reload attempts.
	// Labels: status (success, error)
	PolicyReloadsTotal *prometheus.CounterVec

	// ActiveScans tracks scans currently in flight.
	ActiveScans prometheus.Gauge
}

// DefaultMetrics is the singleton instance of ScanMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *ScanMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics with the default
// registry. Call once at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *ScanMetrics {
	DefaultMetrics = &ScanMetrics{
		ScansTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scanSubsystem,
				Name:      "requests_total",
				Help:      "Total scans by outcome and resulting grade",
			},
			[]string{"outcome", "grade"},
		),

		ScanDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: scanSubsystem,
				Name:      "duration_seconds",
				Help:      "Full scan duration including upstream collection",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"outcome"},
		),

		RuleTriggeredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scanSubsystem,
				Name:      "rule_triggered_total",
				Help:      "Rule trigger counts across all scans",
			},
			[]string{"rule_id"},
		),

		ScoreDistribution: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: scanSubsystem,
				Name:      "score",
				Help:      "Distribution of final scan scores",
				Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),

		PolicyReloadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scanSubsystem,
				Name:      "policy_reloads_total",
				Help:      "Policy reload attempts by status",
			},
			[]string{"status"},
		),

		ActiveScans: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: scanSubsystem,
				Name:      "active",
				Help:      "Scans currently in flight",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Outcome Labels
// =============================================================================

// Outcome categorizes how a scan ended for metrics labeling.
type Outcome string

const (
	// OutcomeSuccess means a report was produced.
	OutcomeSuccess Outcome = "success"

	// OutcomeInvalidRequest means the request failed validation.
	OutcomeInvalidRequest Outcome = "invalid_request"

	// OutcomeNotFound means the PR or repository was not visible.
	OutcomeNotFound Outcome = "not_found"

	// OutcomeUnauthorized means upstream rejected our credentials.
	OutcomeUnauthorized Outcome = "unauthorized"

	// OutcomeRateLimited means the upstream quota was exhausted.
	OutcomeRateLimited Outcome = "rate_limited"

	// OutcomeUpstreamError covers other upstream failures.
	OutcomeUpstreamError Outcome = "upstream_error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordFailure records a scan that ended without a report.
func (m *ScanMetrics) RecordFailure(outcome Outcome, seconds float64) {
	m.ScansTotal.WithLabelValues(string(outcome), gradeNone).Inc()
	m.ScanDurationSeconds.WithLabelValues(string(outcome)).Observe(seconds)
}

// RecordReport records a completed scan and its rule breakdown.
func (m *ScanMetrics) RecordReport(report datatypes.ScanReport, seconds float64) {
	m.ScansTotal.WithLabelValues(string(OutcomeSuccess), report.Grade).Inc()
	m.ScanDurationSeconds.WithLabelValues(string(OutcomeSuccess)).Observe(seconds)
	m.ScoreDistribution.Observe(float64(report.TotalScore))

	for _, result := range report.RuleResults {
		if result.Triggered {
			m.RuleTriggeredTotal.WithLabelValues(result.RuleID).Inc()
		}
	}
}

// RecordPolicyReload records one hot reload attempt.
func (m *ScanMetrics) RecordPolicyReload(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.PolicyReloadsTotal.WithLabelValues(status).Inc()
}

// ScanStarted increments the in-flight gauge.
func (m *ScanMetrics) ScanStarted() {
	m.ActiveScans.Inc()
}

// ScanEnded decrements the in-flight gauge.
func (m *ScanMetrics) ScanEnded() {
	m.ActiveScans.Dec()
}
