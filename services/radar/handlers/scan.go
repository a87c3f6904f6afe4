// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the Gin handlers for the radar HTTP API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/riskradarhq/riskradar/pkg/extensions"
	"github.com/riskradarhq/riskradar/pkg/validation"
	"github.com/riskradarhq/riskradar/services/radar/collector"
	"github.com/riskradarhq/riskradar/services/radar/datatypes"
	"github.com/riskradarhq/riskradar/services/radar/middleware"
	"github.com/riskradarhq/riskradar/services/radar/observability"
	"github.com/riskradarhq/riskradar/services/radar/scoring"
	"github.com/riskradarhq/riskradar/services/radar/telemetry"
)

var scanTracer = otel.Tracer("riskradar.handlers")

// ScanQuery is the query-string contract for the scan endpoint.
type ScanQuery struct {
	Owner  string `form:"owner" binding:"required"`
	Repo   string `form:"repo" binding:"required"`
	Number int    `form:"pr" binding:"required,gt=0"`
}

// HandleScanPR scores a single pull request.
//
// The flow is collect, score, respond: the collector gathers signals
// from the hosting provider, the scoring engine evaluates them against
// the current policy, and the handler wraps the report in a
// ScanResponse envelope. Collector sentinel errors map onto HTTP
// status codes:
//
//	ErrNotFound     -> 404
//	ErrRateLimited  -> 429
//	ErrUnauthorized -> 502 (our credentials, not the caller's)
//	ErrUpstream     -> 502
func HandleScanPR(col collector.Collector, store *scoring.PolicyStore,
	audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := scanTracer.Start(c.Request.Context(), "HandleScanPR")
		defer span.End()

		if m := observability.DefaultMetrics; m != nil {
			m.ScanStarted()
			defer m.ScanEnded()
		}
		start := time.Now()

		var q ScanQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if m := observability.DefaultMetrics; m != nil {
				m.RecordFailure(observability.OutcomeInvalidRequest, time.Since(start).Seconds())
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "owner, repo and pr (positive integer) query parameters are required",
			})
			return
		}
		ref := validation.PRRef{Owner: q.Owner, Repo: q.Repo, Number: q.Number}
		if err := ref.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if m := observability.DefaultMetrics; m != nil {
				m.RecordFailure(observability.OutcomeInvalidRequest, time.Since(start).Seconds())
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(
			attribute.String("pr.owner", q.Owner),
			attribute.String("pr.repo", q.Repo),
			attribute.Int("pr.number", q.Number),
		)

		logger := telemetry.LoggerWithTrace(ctx, slog.Default())
		userID := callerID(c)
		prRef := ref.String()

		audit.Log(ctx, extensions.AuditEvent{
			EventType:    "scan.requested",
			UserID:       userID,
			ResourceType: "pull_request",
			ResourceID:   prRef,
			Outcome:      "success",
		})

		result, err := col.CollectPR(ctx, q.Owner, q.Repo, q.Number)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			status, outcome, message := mapCollectError(err)
			logger.Error("PR signal collection failed",
				"pr", prRef, "outcome", string(outcome), "error", err)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordFailure(outcome, time.Since(start).Seconds())
			}
			audit.Log(ctx, extensions.AuditEvent{
				EventType:    "scan.failed",
				UserID:       userID,
				ResourceType: "pull_request",
				ResourceID:   prRef,
				Outcome:      "error",
				Metadata:     map[string]any{"reason": string(outcome)},
			})
			c.JSON(status, gin.H{"error": message})
			return
		}

		report := scoring.Score(store.Current(), result.Signals)

		resp := datatypes.ScanResponse{
			ScanID:      uuid.NewString(),
			Owner:       q.Owner,
			Repo:        q.Repo,
			Number:      q.Number,
			Summary:     result.Summary,
			Signals:     result.Signals,
			Report:      report,
			GeneratedAt: time.Now().UTC(),
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordReport(report, time.Since(start).Seconds())
		}
		audit.Log(ctx, extensions.AuditEvent{
			EventType:    "scan.completed",
			UserID:       userID,
			ResourceType: "pull_request",
			ResourceID:   prRef,
			Outcome:      "success",
			Metadata: map[string]any{
				"scan_id": resp.ScanID,
				"score":   report.TotalScore,
				"grade":   report.Grade,
			},
		})
		logger.Info("Scored pull request",
			"pr", prRef,
			"score", report.TotalScore,
			"grade", report.Grade,
			"triggered", report.TriggeredCount(),
			"duration_ms", time.Since(start).Milliseconds())

		c.JSON(http.StatusOK, resp)
	}
}

// mapCollectError translates collector sentinels into the HTTP status,
// metrics outcome, and client-facing message for a failed scan.
func mapCollectError(err error) (int, observability.Outcome, string) {
	switch {
	case errors.Is(err, collector.ErrNotFound):
		return http.StatusNotFound, observability.OutcomeNotFound,
			"pull request not found"
	case errors.Is(err, collector.ErrRateLimited):
		return http.StatusTooManyRequests, observability.OutcomeRateLimited,
			"upstream rate limit exceeded, retry later"
	case errors.Is(err, collector.ErrUnauthorized):
		return http.StatusBadGateway, observability.OutcomeUnauthorized,
			"upstream rejected the configured credentials"
	default:
		return http.StatusBadGateway, observability.OutcomeUpstreamError,
			"upstream provider error"
	}
}

// callerID resolves the audit identity from the auth middleware,
// falling back to "anonymous" on unauthenticated routes.
func callerID(c *gin.Context) string {
	if info := middleware.GetAuthInfo(c); info != nil {
		return info.UserID
	}
	return "anonymous"
}
