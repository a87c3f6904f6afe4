// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/riskradarhq/riskradar/pkg/logging"
)

// Exit codes shared by the scan and policy subcommands, so automation
// can always distinguish "the check failed" from "the tool failed".
const (
	ExitSuccess     = 0
	ExitCheckFailed = 1
	ExitError       = 2
)

// --- Global Command Variables ---
var (
	rootVerbose bool

	rootCmd = &cobra.Command{
		Use:   "riskradar",
		Short: "Score pull request risk before it merges",
		Long: `RiskRadar fetches pull request metadata from the hosting provider and
scores it against a configurable risk policy. The result is a 0-100
score, a letter grade, and a per-rule breakdown suitable for review
prioritization and CI gating.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// CLI runs stay quiet unless asked; scan output goes to
			// stdout, logs to stderr.
			level := logging.LevelWarn
			if rootVerbose {
				level = logging.LevelDebug
			}
			logger := logging.New(logging.Config{Level: level, Service: "cli"})
			slog.SetDefault(logger.Slog())
		},
	}

	// --- Policies ---
	policyCmd = &cobra.Command{
		Use:   "policy",
		Short: "Base command to work with scoring policies",
		Long: `Use policy + subcommands to inspect and validate the scoring policy
documents that drive the risk rules. The default policy is embedded
in the riskradar binary; overrides are plain YAML files.`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false,
		"Enable debug logging on stderr")

	rootCmd.AddCommand(policyCmd)
}
