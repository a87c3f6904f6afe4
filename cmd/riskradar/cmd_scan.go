// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/riskradarhq/riskradar/pkg/ux"
	"github.com/riskradarhq/riskradar/pkg/validation"
	"github.com/riskradarhq/riskradar/services/radar"
	"github.com/riskradarhq/riskradar/services/radar/collector"
	"github.com/riskradarhq/riskradar/services/radar/datatypes"
	"github.com/riskradarhq/riskradar/services/radar/scoring"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	scanOwner     string
	scanRepo      string
	scanNumber    int
	scanPolicy    string
	scanFailBelow string
	scanJSON      bool
	scanQuiet     bool
	scanExplain   bool
	scanTimeout   int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var scanCmd = &cobra.Command{
	Use:   "scan [owner/repo#number]",
	Short: "Score the risk of a pull request",
	Long: `Fetch a pull request from the hosting provider and score it against
the active risk policy.

The scan collects change size, touched paths, diff content, review
state, check runs, and author standing, then applies the policy rules
to produce a 0-100 score and a letter grade. Credentials come from
GITHUB_TOKEN / GH_TOKEN or the RADAR_GITHUB_APP_* variables; anonymous
scans work for public repositories within GitHub's rate limits.

Examples:
  riskradar scan octo/radar#7               # Scan by reference
  riskradar scan --owner octo --repo radar --pr 7
  riskradar scan octo/radar#7 --json        # JSON output for automation
  riskradar scan octo/radar#7 --fail-below B
  riskradar scan octo/radar#7 --policy team-policy.yaml
  riskradar scan octo/radar#7 --explain     # Every rule, not just findings

Exit Codes:
  0 = Scan completed (and grade met --fail-below, when given)
  1 = Grade below the --fail-below threshold
  2 = Error (bad reference, policy, credentials, or upstream failure)`,
	Args: cobra.MaximumNArgs(1),
	Run:  runScanCommand,
}

func init() {
	scanCmd.Flags().StringVar(&scanOwner, "owner", "",
		"Repository owner (user or organization)")
	scanCmd.Flags().StringVar(&scanRepo, "repo", "",
		"Repository name")
	scanCmd.Flags().IntVar(&scanNumber, "pr", 0,
		"Pull request number")
	scanCmd.Flags().StringVar(&scanPolicy, "policy", "",
		"Scoring policy file (default: RADAR_POLICY_PATH or built-in)")
	scanCmd.Flags().StringVar(&scanFailBelow, "fail-below", "",
		"Exit 1 when the grade lands below this letter (CI gating)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false,
		"Output as JSON")
	scanCmd.Flags().BoolVar(&scanQuiet, "quiet", false,
		"Only exit code, no output")
	scanCmd.Flags().BoolVar(&scanExplain, "explain", false,
		"Show the full rule breakdown including clean rules")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 60,
		"Total timeout in seconds")

	// Add to root
	rootCmd.AddCommand(scanCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runScanCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(scanTimeout)*time.Second)
	defer cancel()

	ref, err := resolveScanTarget(args)
	if err != nil {
		outputScanError("Invalid pull request reference", err)
		os.Exit(ExitError)
	}

	cfg := radar.ConfigFromEnv()
	if scanPolicy != "" {
		cfg.PolicyPath = scanPolicy
	}

	policy, err := loadScanPolicy(cfg.PolicyPath)
	if err != nil {
		outputScanError("Failed to load the scoring policy", err)
		os.Exit(ExitError)
	}

	// Resolve the gate grade before spending API calls on the scan.
	failFloor := -1
	if scanFailBelow != "" {
		floor, ok := policy.FloorFor(scanFailBelow)
		if !ok {
			outputScanError("Invalid --fail-below grade",
				fmt.Errorf("grade %q is not defined by the active policy", scanFailBelow))
			os.Exit(ExitError)
		}
		failFloor = floor
	}

	col, err := buildScanCollector(cfg)
	if err != nil {
		outputScanError("Failed to build the GitHub client", err)
		os.Exit(ExitError)
	}
	defer collector.PurgeSecrets()

	resp, err := executeScan(ctx, col, policy, ref)
	if err != nil {
		outputScanError("Scan failed", err)
		os.Exit(ExitError)
	}

	// Output result
	if !scanQuiet {
		if scanJSON {
			outputScanJSON(resp)
		} else {
			outputScanText(resp)
		}
	}

	// Determine exit code
	if failFloor >= 0 && gradeBelowFloor(policy, resp.Report.Grade, failFloor) {
		os.Exit(ExitCheckFailed)
	}
	os.Exit(ExitSuccess)
}

// resolveScanTarget merges the positional reference with the flag
// form. Exactly one of the two forms must be provided.
func resolveScanTarget(args []string) (validation.PRRef, error) {
	flagged := scanOwner != "" || scanRepo != "" || scanNumber != 0

	if len(args) > 0 {
		if flagged {
			return validation.PRRef{}, fmt.Errorf(
				"pass either %q or --owner/--repo/--pr, not both", args[0])
		}
		return validation.ParsePRRef(args[0])
	}

	if !flagged {
		return validation.PRRef{}, fmt.Errorf(
			"no pull request given (pass owner/repo#number or --owner, --repo and --pr)")
	}

	ref := validation.PRRef{Owner: scanOwner, Repo: scanRepo, Number: scanNumber}
	if err := ref.Validate(); err != nil {
		return validation.PRRef{}, err
	}
	return ref, nil
}

// loadScanPolicy loads the policy file when one is configured, the
// built-in defaults otherwise.
func loadScanPolicy(path string) (*scoring.ScoringPolicy, error) {
	if path == "" {
		return scoring.DefaultPolicy()
	}
	return scoring.LoadPolicy(path)
}

// buildScanCollector resolves credentials from the environment the
// same way the server does, so one setup serves both deployments.
func buildScanCollector(cfg radar.Config) (collector.Collector, error) {
	tokenSource, err := collector.ResolveTokenSource(cfg.App, cfg.StaticToken)
	if err != nil {
		return nil, fmt.Errorf("resolve github credentials: %w", err)
	}

	return collector.New(collector.Options{
		TokenSource: tokenSource,
		BaseURL:     cfg.GitHubBaseURL,
		Limiter:     collector.NewLimiter(cfg.UpstreamRPS, cfg.UpstreamBurst),
	})
}

// executeScan runs the collect-then-score pipeline and wraps the
// result in the same response envelope the HTTP API returns.
func executeScan(ctx context.Context, col collector.Collector,
	policy *scoring.ScoringPolicy, ref validation.PRRef) (*datatypes.ScanResponse, error) {
	result, err := col.CollectPR(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return nil, err
	}

	report := scoring.Score(policy, result.Signals)

	return &datatypes.ScanResponse{
		ScanID:      uuid.NewString(),
		Owner:       ref.Owner,
		Repo:        ref.Repo,
		Number:      ref.Number,
		Summary:     result.Summary,
		Signals:     result.Signals,
		Report:      report,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// gradeBelowFloor reports whether a result grade sits below the gate
// floor on the policy's grade scale. Grades the policy cannot place
// fail closed.
func gradeBelowFloor(policy *scoring.ScoringPolicy, grade string, floor int) bool {
	got, ok := policy.FloorFor(grade)
	if !ok {
		return true
	}
	return got < floor
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputScanError(msg string, err error) {
	if scanJSON && !scanQuiet {
		result := map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("%s: %v", msg, err),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(result)
		return
	}
	ux.Fail(fmt.Sprintf("%s: %v", msg, err))
}

func outputScanJSON(resp *datatypes.ScanResponse) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(ExitError)
	}
}

func outputScanText(resp *datatypes.ScanResponse) {
	ux.Title(fmt.Sprintf("Risk Report: %s/%s#%d", resp.Owner, resp.Repo, resp.Number))
	if resp.Summary.Title != "" {
		state := resp.Summary.State
		if resp.Summary.Draft {
			state += ", draft"
		}
		fmt.Printf("%s (%s, into %s)\n", resp.Summary.Title, state, resp.Summary.BaseRef)
	}
	fmt.Println()

	score := ux.ScoreStyle(resp.Report.TotalScore).Render(
		fmt.Sprintf("%d/100", resp.Report.TotalScore))
	scoreLine := fmt.Sprintf("Score: %s   Grade: %s", score, ux.GradeBadge(resp.Report.Grade))
	if ux.IsInteractive(os.Stdout) {
		fmt.Println(ux.Styles.ReportBox.Render(scoreLine))
	} else {
		fmt.Println(scoreLine)
	}
	fmt.Println()

	if resp.Report.TriggeredCount() == 0 {
		ux.Success("No risk findings.")
	} else {
		fmt.Println("Findings:")
		for _, rr := range resp.Report.RuleResults {
			if !rr.Triggered {
				continue
			}
			fmt.Printf("  %s %-16s %4d  %s\n", ux.IconTriggered.Render(), rr.RuleID, rr.Delta, rr.Reason)
		}
	}

	// Full breakdown (with --explain)
	if scanExplain {
		fmt.Println()
		fmt.Println("Rule Breakdown:")
		for _, rr := range resp.Report.RuleResults {
			icon := ux.IconClean
			if rr.Triggered {
				icon = ux.IconTriggered
			}
			fmt.Printf("  %s %-16s %4d  %s\n", icon.Render(), rr.RuleID, rr.Delta, rr.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Signals: +%d/-%d lines across %d files\n",
		resp.Signals.Additions, resp.Signals.Deletions, resp.Signals.ChangedFilesCount)
}
