// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/riskradarhq/riskradar/services/radar/datatypes"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

// newTestMetrics creates a ScanMetrics instance with a custom registry.
// This avoids conflicts with the global Prometheus registry and allows
// parallel testing.
func newTestMetrics(t *testing.T) *ScanMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	scansTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: scanSubsystem,
			Name:      "requests_total",
			Help:      "Total scans by outcome and resulting grade",
		},
		[]string{"outcome", "grade"},
	)

	scanDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: scanSubsystem,
			Name:      "duration_seconds",
			Help:      "Full scan duration including upstream collection",
			Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"outcome"},
	)

	ruleTriggeredTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: scanSubsystem,
			Name:      "rule_triggered_total",
			Help:      "Rule trigger counts across all scans",
		},
		[]string{"rule_id"},
	)

	scoreDistribution := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: scanSubsystem,
			Name:      "score",
			Help:      "Distribution of final scan scores",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	policyReloadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: scanSubsystem,
			Name:      "policy_reloads_total",
			Help:      "Policy reload attempts by status",
		},
		[]string{"status"},
	)

	activeScans := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: scanSubsystem,
			Name:      "active",
			Help:      "Scans currently in flight",
		},
	)

	reg.MustRegister(
		scansTotal,
		scanDurationSeconds,
		ruleTriggeredTotal,
		scoreDistribution,
		policyReloadsTotal,
		activeScans,
	)

	return &ScanMetrics{
		ScansTotal:          scansTotal,
		ScanDurationSeconds: scanDurationSeconds,
		RuleTriggeredTotal:  ruleTriggeredTotal,
		ScoreDistribution:   scoreDistribution,
		PolicyReloadsTotal:  policyReloadsTotal,
		ActiveScans:         activeScans,
	}
}

// ============================================================================
// InitMetrics Tests
// ============================================================================

// Note: InitMetrics uses promauto which registers with the default
// Prometheus registry. This test must only run once per test binary
// execution since duplicate registration panics.
var initMetricsTestOnce bool

func TestInitMetrics(t *testing.T) {
	if initMetricsTestOnce {
		t.Skip("InitMetrics can only be called once per test run (promauto restriction)")
	}
	initMetricsTestOnce = true

	result := InitMetrics()
	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}
	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}

	if result.ScansTotal == nil {
		t.Error("ScansTotal should not be nil")
	}
	if result.ScanDurationSeconds == nil {
		t.Error("ScanDurationSeconds should not be nil")
	}
	if result.RuleTriggeredTotal == nil {
		t.Error("RuleTriggeredTotal should not be nil")
	}
	if result.ScoreDistribution == nil {
		t.Error("ScoreDistribution should not be nil")
	}
	if result.PolicyReloadsTotal == nil {
		t.Error("PolicyReloadsTotal should not be nil")
	}
	if result.ActiveScans == nil {
		t.Error("ActiveScans should not be nil")
	}

	// Verify the instruments accept writes.
	result.RecordFailure(OutcomeNotFound, 0.2)
	result.RecordPolicyReload(true)
	result.ScanStarted()
	result.ScanEnded()
}

// ============================================================================
// RecordFailure Tests
// ============================================================================

func TestScanMetrics_RecordFailure(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFailure(OutcomeRateLimited, 0.5)
	m.RecordFailure(OutcomeRateLimited, 0.7)
	m.RecordFailure(OutcomeNotFound, 0.1)

	limited := testutil.ToFloat64(m.ScansTotal.WithLabelValues("rate_limited", "none"))
	if limited != 2 {
		t.Errorf("ScansTotal[rate_limited,none] = %f, want 2", limited)
	}

	missing := testutil.ToFloat64(m.ScansTotal.WithLabelValues("not_found", "none"))
	if missing != 1 {
		t.Errorf("ScansTotal[not_found,none] = %f, want 1", missing)
	}
}

// ============================================================================
// RecordReport Tests
// ============================================================================

func TestScanMetrics_RecordReport(t *testing.T) {
	m := newTestMetrics(t)

	report := datatypes.ScanReport{
		TotalScore: 72,
		Grade:      "C",
		RuleResults: []datatypes.RuleResult{
			{RuleID: "size", Triggered: true, Delta: -25},
			{RuleID: "file_count", Triggered: false},
			{RuleID: "secret_pattern", Triggered: true, Delta: -20},
		},
	}

	m.RecordReport(report, 1.2)

	scans := testutil.ToFloat64(m.ScansTotal.WithLabelValues("success", "C"))
	if scans != 1 {
		t.Errorf("ScansTotal[success,C] = %f, want 1", scans)
	}

	sizeHits := testutil.ToFloat64(m.RuleTriggeredTotal.WithLabelValues("size"))
	if sizeHits != 1 {
		t.Errorf("RuleTriggeredTotal[size] = %f, want 1", sizeHits)
	}
	secretHits := testutil.ToFloat64(m.RuleTriggeredTotal.WithLabelValues("secret_pattern"))
	if secretHits != 1 {
		t.Errorf("RuleTriggeredTotal[secret_pattern] = %f, want 1", secretHits)
	}
	quietHits := testutil.ToFloat64(m.RuleTriggeredTotal.WithLabelValues("file_count"))
	if quietHits != 0 {
		t.Errorf("RuleTriggeredTotal[file_count] = %f, want 0", quietHits)
	}

	if count := testutil.CollectAndCount(m.ScoreDistribution); count == 0 {
		t.Error("expected the score histogram to be collectable")
	}
}

// ============================================================================
// RecordPolicyReload Tests
// ============================================================================

func TestScanMetrics_RecordPolicyReload(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPolicyReload(true)
	m.RecordPolicyReload(true)
	m.RecordPolicyReload(false)

	ok := testutil.ToFloat64(m.PolicyReloadsTotal.WithLabelValues("success"))
	if ok != 2 {
		t.Errorf("PolicyReloadsTotal[success] = %f, want 2", ok)
	}
	failed := testutil.ToFloat64(m.PolicyReloadsTotal.WithLabelValues("error"))
	if failed != 1 {
		t.Errorf("PolicyReloadsTotal[error] = %f, want 1", failed)
	}
}

// ============================================================================
// Gauge Lifecycle Tests
// ============================================================================

func TestScanMetrics_ActiveScansLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.ScanStarted()
	m.ScanStarted()
	if val := testutil.ToFloat64(m.ActiveScans); val != 2 {
		t.Errorf("ActiveScans = %f, want 2", val)
	}

	m.ScanEnded()
	m.ScanEnded()
	if val := testutil.ToFloat64(m.ActiveScans); val != 0 {
		t.Errorf("ActiveScans = %f, want 0", val)
	}
}

// ============================================================================
// Concurrent Safety Tests
// ============================================================================

func TestScanMetrics_ConcurrentSafety(t *testing.T) {
	m := newTestMetrics(t)

	report := datatypes.ScanReport{
		TotalScore: 100,
		Grade:      "A",
		RuleResults: []datatypes.RuleResult{
			{RuleID: "size", Triggered: false},
		},
	}

	done := make(chan bool, 60)

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordReport(report, 0.3)
			done <- true
		}()
	}
	for i := 0; i < 20; i++ {
		go func() {
			m.RecordFailure(OutcomeUpstreamError, 0.1)
			done <- true
		}()
	}
	for i := 0; i < 20; i++ {
		go func() {
			m.ScanStarted()
			m.ScanEnded()
			done <- true
		}()
	}

	for i := 0; i < 60; i++ {
		<-done
	}

	success := testutil.ToFloat64(m.ScansTotal.WithLabelValues("success", "A"))
	if success != 20 {
		t.Errorf("ScansTotal[success,A] = %f, want 20", success)
	}
	failures := testutil.ToFloat64(m.ScansTotal.WithLabelValues("upstream_error", "none"))
	if failures != 20 {
		t.Errorf("ScansTotal[upstream_error,none] = %f, want 20", failures)
	}
}
