// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/riskradarhq/riskradar/pkg/validation"
	"github.com/riskradarhq/riskradar/services/radar/collector"
	"github.com/riskradarhq/riskradar/services/radar/datatypes"
	"github.com/riskradarhq/riskradar/services/radar/scoring"
)

// resetScanFlags restores the package-level flag variables the scan
// command reads, since tests in this package share them.
func resetScanFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		scanOwner = ""
		scanRepo = ""
		scanNumber = 0
	})
}

// stubCollector returns a canned result without touching the network.
type stubCollector struct {
	result *collector.Result
	err    error
}

func (s *stubCollector) CollectPR(ctx context.Context, owner, repo string, number int) (*collector.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestResolveScanTarget(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		owner   string
		repo    string
		number  int
		want    validation.PRRef
		wantErr bool
	}{
		{
			name: "positional reference",
			args: []string{"octo/radar#7"},
			want: validation.PRRef{Owner: "octo", Repo: "radar", Number: 7},
		},
		{
			name:   "flag form",
			owner:  "octo",
			repo:   "radar",
			number: 7,
			want:   validation.PRRef{Owner: "octo", Repo: "radar", Number: 7},
		},
		{
			name:    "both forms rejected",
			args:    []string{"octo/radar#7"},
			owner:   "octo",
			wantErr: true,
		},
		{
			name:    "neither form",
			wantErr: true,
		},
		{
			name:    "invalid positional",
			args:    []string{"octo-radar-7"},
			wantErr: true,
		},
		{
			name:    "incomplete flags",
			owner:   "octo",
			repo:    "radar",
			wantErr: true,
		},
		{
			name:    "traversal repo via flags",
			owner:   "octo",
			repo:    "..",
			number:  7,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetScanFlags(t)
			scanOwner = tt.owner
			scanRepo = tt.repo
			scanNumber = tt.number

			got, err := resolveScanTarget(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveScanTarget() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("resolveScanTarget() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGradeBelowFloor(t *testing.T) {
	policy, err := scoring.DefaultPolicy()
	if err != nil {
		t.Fatalf("default policy: %v", err)
	}

	bFloor, ok := policy.FloorFor("B")
	if !ok {
		t.Fatalf("default policy has no grade B")
	}

	tests := []struct {
		grade string
		want  bool
	}{
		{"A", false},
		{"B", false}, // at the gate is not below it
		{"C", true},
		{"F", true},
		{"?", true}, // unknown grades fail closed
	}

	for _, tt := range tests {
		t.Run(tt.grade, func(t *testing.T) {
			if got := gradeBelowFloor(policy, tt.grade, bFloor); got != tt.want {
				t.Errorf("gradeBelowFloor(%q, %d) = %v, want %v", tt.grade, bFloor, got, tt.want)
			}
		})
	}
}

func TestLoadScanPolicy(t *testing.T) {
	t.Run("built-in when unset", func(t *testing.T) {
		policy, err := loadScanPolicy("")
		if err != nil {
			t.Fatalf("loadScanPolicy(\"\") failed: %v", err)
		}
		if policy.BaseScore != scoring.MaxScore {
			t.Errorf("unexpected base score %d", policy.BaseScore)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := loadScanPolicy("/does/not/exist.yaml"); err == nil {
			t.Error("expected an error for a missing policy file")
		}
	})
}

func TestExecuteScan(t *testing.T) {
	policy, err := scoring.DefaultPolicy()
	if err != nil {
		t.Fatalf("default policy: %v", err)
	}

	col := &stubCollector{result: &collector.Result{
		Signals: datatypes.PRSignals{
			Additions:         10,
			Deletions:         2,
			ChangedFilesCount: 1,
			ChangedFilePaths:  []string{"docs/usage.md"},
			AuthorAssociation: datatypes.AssociationMember,
			AgeDays:           1,
		},
		Summary: datatypes.PRSummary{Title: "Tidy docs", State: "open", BaseRef: "main"},
	}}

	ref := validation.PRRef{Owner: "octo", Repo: "radar", Number: 7}
	resp, err := executeScan(context.Background(), col, policy, ref)
	if err != nil {
		t.Fatalf("executeScan failed: %v", err)
	}

	if resp.Owner != "octo" || resp.Repo != "radar" || resp.Number != 7 {
		t.Errorf("response misidentifies the PR: %s/%s#%d", resp.Owner, resp.Repo, resp.Number)
	}
	if resp.ScanID == "" {
		t.Error("expected a scan id")
	}
	if resp.GeneratedAt.IsZero() {
		t.Error("expected a generation timestamp")
	}
	if resp.Report.TotalScore != scoring.MaxScore || resp.Report.Grade != "A" {
		t.Errorf("benign PR scored %d/%s, expected a clean A",
			resp.Report.TotalScore, resp.Report.Grade)
	}
	if len(resp.Report.RuleResults) != len(scoring.RuleIDs()) {
		t.Errorf("expected %d rule results, got %d",
			len(scoring.RuleIDs()), len(resp.Report.RuleResults))
	}
	if resp.Summary.Title != "Tidy docs" {
		t.Errorf("summary did not pass through: %+v", resp.Summary)
	}
}

func TestExecuteScan_CollectorError(t *testing.T) {
	policy, err := scoring.DefaultPolicy()
	if err != nil {
		t.Fatalf("default policy: %v", err)
	}

	col := &stubCollector{err: collector.ErrNotFound}
	ref := validation.PRRef{Owner: "octo", Repo: "radar", Number: 404}

	_, err = executeScan(context.Background(), col, policy, ref)
	if !errors.Is(err, collector.ErrNotFound) {
		t.Fatalf("expected the collector error to pass through, got %v", err)
	}
}
