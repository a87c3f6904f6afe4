// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command radar-server starts the riskradar scan API server.
//
// This is the main entry point for the containerized deployment. It
// reads configuration from environment variables only; use the
// riskradar CLI's serve subcommand when flags are wanted.
//
// # Environment Variables
//
//   - RADAR_PORT: HTTP server port (default: 8184)
//   - RADAR_POLICY_PATH: scoring policy YAML (default: built-in policy)
//   - RADAR_POLICY_WATCH: hot reload the policy file (default: true)
//   - GITHUB_TOKEN / GH_TOKEN: personal access token for the collector
//   - RADAR_GITHUB_APP_ID, RADAR_GITHUB_APP_INSTALLATION_ID,
//     RADAR_GITHUB_APP_PRIVATE_KEY: GitHub App credentials (take
//     precedence over the token)
//   - RADAR_API_TOKENS: comma-separated inbound bearer tokens
//   - OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER,
//     OTEL_EXPORTER_OTLP_ENDPOINT: telemetry export
//
// # Usage
//
//	# Build
//	go build -o radar-server ./cmd/radar-server
//
//	# Run
//	GITHUB_TOKEN=... ./radar-server
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/riskradarhq/riskradar/pkg/logging"
	"github.com/riskradarhq/riskradar/services/radar"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("RADAR_LOG_LEVEL")),
		JSON:    true,
		Service: "radar",
	})
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := radar.ConfigFromEnv()

	slog.Info("Starting radar server",
		"port", cfg.Port,
		"version", cfg.Version,
		"policy_path", cfg.PolicyPath,
		"policy_watch", cfg.PolicyWatch,
	)

	// Create the service with default (no-op) extension options.
	// Hosted builds will pass custom ServiceOptions here.
	svc, err := radar.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create radar service: %v", err)
	}

	// Run until SIGINT/SIGTERM, then drain in-flight scans.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("Radar server error: %v", err)
	}
}
