// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/riskradarhq/riskradar/pkg/logging"
	"github.com/riskradarhq/riskradar/services/radar"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	servePort    int
	servePolicy  string
	serveNoWatch bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the riskradar HTTP service",
	Long: `Start the scan API server.

Configuration comes from RADAR_* environment variables; the flags
below override individual values. The server exposes /healthz,
/metrics (Prometheus), and GET /api/v1/scan-pr, and hot reloads the
policy file on change unless watching is disabled.`,
	Run: runServeCommand,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Listen port (default: RADAR_PORT or 8184)")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "",
		"Scoring policy file (default: RADAR_POLICY_PATH or built-in)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false,
		"Disable policy hot reload")

	// Add to root
	rootCmd.AddCommand(serveCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServeCommand(cmd *cobra.Command, args []string) {
	// The CLI default of warn-level text logging is too quiet for an
	// operator tailing a server process. Switch to info-level JSON.
	level := logging.LevelInfo
	if rootVerbose {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, JSON: true, Service: "radar"})
	slog.SetDefault(logger.Slog())

	cfg := radar.ConfigFromEnv()
	if servePort > 0 {
		cfg.Port = servePort
	}
	if servePolicy != "" {
		cfg.PolicyPath = servePolicy
	}
	if serveNoWatch {
		cfg.PolicyWatch = false
	}

	svc, err := radar.New(cfg, nil)
	if err != nil {
		slog.Error("Failed to initialize the radar service", "error", err)
		os.Exit(ExitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		slog.Error("Radar service exited with an error", "error", err)
		os.Exit(ExitError)
	}
}
