// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package collector

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for signal collection operations.
var (
	tracer = otel.Tracer("riskradar.collector")
	meter  = otel.Meter("riskradar.collector")
)

// Metrics for upstream API traffic.
var (
	requestLatency metric.Float64Histogram
	requestsTotal  metric.Int64Counter
	collectLatency metric.Float64Histogram
	collectTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		requestLatency, err = meter.Float64Histogram(
			"collector_github_request_duration_seconds",
			metric.WithDescription("Duration of individual GitHub API requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		requestsTotal, err = meter.Int64Counter(
			"collector_github_requests_total",
			metric.WithDescription("Total GitHub API requests by operation and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		collectLatency, err = meter.Float64Histogram(
			"collector_collect_duration_seconds",
			metric.WithDescription("Duration of full signal collection per pull request"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		collectTotal, err = meter.Int64Counter(
			"collector_collect_total",
			metric.WithDescription("Total signal collection operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startCollectSpan creates a span for one full signal collection.
func startCollectSpan(ctx context.Context, owner, repo string, number int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GitHubCollector.CollectPR",
		trace.WithAttributes(
			attribute.String("pr.owner", owner),
			attribute.String("pr.repo", repo),
			attribute.Int("pr.number", number),
		),
	)
}

// recordRequestMetrics records one upstream API call.
func recordRequestMetrics(ctx context.Context, operation string, duration time.Duration, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)

	requestLatency.Record(ctx, duration.Seconds(), attrs)
	requestsTotal.Add(ctx, 1, attrs)
}

// recordCollectMetrics records one completed collection attempt.
func recordCollectMetrics(ctx context.Context, duration time.Duration, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	collectLatency.Record(ctx, duration.Seconds(), attrs)
	collectTotal.Add(ctx, 1, attrs)
}
