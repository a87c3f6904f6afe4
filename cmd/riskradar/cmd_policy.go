// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riskradarhq/riskradar/pkg/ux"
	"github.com/riskradarhq/riskradar/services/radar/scoring"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	policyCheckJSON  bool
	policyCheckQuiet bool
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var policyCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a scoring policy file",
	Long: `Parse and validate a scoring policy document without running a scan.

With no argument the file named by RADAR_POLICY_PATH is checked, or
the built-in policy when that is unset. Validation applies the same
rules the server enforces at startup and on hot reload: complete
grade coverage, monotonic tiers, and compilable secret signatures.

Examples:
  riskradar policy check team-policy.yaml
  riskradar policy check --json

Exit Codes:
  0 = Policy is valid
  1 = Policy is invalid
  2 = Error (unreadable file)`,
	Args: cobra.MaximumNArgs(1),
	Run:  runPolicyCheck,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the built-in scoring policy",
	Long: `Print the built-in policy document to stdout as YAML.

Redirect the output to a file to get a starting point for a custom
policy:

  riskradar policy show > policy.yaml`,
	Run: runPolicyShow,
}

func init() {
	policyCheckCmd.Flags().BoolVar(&policyCheckJSON, "json", false,
		"Output as JSON")
	policyCheckCmd.Flags().BoolVar(&policyCheckQuiet, "quiet", false,
		"Only exit code, no output")

	// Add to policy command
	policyCmd.AddCommand(policyCheckCmd)
	policyCmd.AddCommand(policyShowCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// policyCheckResult is the outcome of one policy validation.
type policyCheckResult struct {
	Source  string `json:"source"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Version int    `json:"version,omitempty"`
	Grades  int    `json:"grades,omitempty"`
}

// checkPolicy validates the policy at path, or the built-in document
// when path is empty, and returns the result with its exit code.
func checkPolicy(path string) (policyCheckResult, int) {
	result := policyCheckResult{Source: "built-in"}

	var data []byte
	if path != "" {
		result.Source = path
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			result.Error = err.Error()
			return result, ExitError
		}
	} else {
		data = scoring.DefaultPolicyYAML()
	}

	policy, err := scoring.ParsePolicy(data)
	if err != nil {
		result.Error = err.Error()
		return result, ExitCheckFailed
	}

	result.Valid = true
	result.Version = policy.Version
	result.Grades = len(policy.Grades)
	return result, ExitSuccess
}

func runPolicyCheck(cmd *cobra.Command, args []string) {
	path := os.Getenv("RADAR_POLICY_PATH")
	if len(args) > 0 {
		path = args[0]
	}

	result, exit := checkPolicy(path)

	if !policyCheckQuiet {
		if policyCheckJSON {
			outputPolicyCheckJSON(result)
		} else {
			outputPolicyCheckText(result)
		}
	}
	os.Exit(exit)
}

func runPolicyShow(cmd *cobra.Command, args []string) {
	if _, err := os.Stdout.Write(scoring.DefaultPolicyYAML()); err != nil {
		ux.Fail(fmt.Sprintf("Failed to write the policy: %v", err))
		os.Exit(ExitError)
	}
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputPolicyCheckJSON(result policyCheckResult) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(result)
}

func outputPolicyCheckText(result policyCheckResult) {
	if result.Valid {
		ux.Success(fmt.Sprintf("Policy %s is valid (version %d, %d grades)",
			result.Source, result.Version, result.Grades))
		return
	}
	ux.Fail(fmt.Sprintf("Policy %s is invalid: %s", result.Source, result.Error))
}
