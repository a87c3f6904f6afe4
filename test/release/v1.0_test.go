package test

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/riskradarhq/riskradar/services/radar/datatypes"
	"github.com/riskradarhq/riskradar/services/radar/scoring"
)

// TestV1ScanResponseContract pins the JSON field names of the v1.0
// scan envelope. Renaming any of these breaks deployed API consumers
// and CLI automation, so it needs an API version bump, not a tag edit.
func TestV1ScanResponseContract(t *testing.T) {
	resp := datatypes.ScanResponse{
		ScanID: "scan-123",
		Owner:  "octo",
		Repo:   "radar",
		Number: 7,
		Summary: datatypes.PRSummary{
			Title:     "Rework deploy workflow",
			State:     "open",
			BaseRef:   "main",
			HeadSHA:   "feedbeef",
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		Signals: datatypes.PRSignals{
			Additions:         120,
			Deletions:         30,
			ChangedFilesCount: 3,
			DiffText:          "SECRET-DIFF-CONTENT",
			FailingChecks:     2,
			ChangesRequested:  true,
			AuthorAssociation: datatypes.AssociationMember,
		},
		Report: datatypes.ScanReport{
			TotalScore: 61,
			Grade:      "D",
			RuleResults: []datatypes.RuleResult{
				{RuleID: "sensitive_path", Triggered: true, Delta: -12, Reason: "touches sensitive paths: workflows"},
				{RuleID: "size", Triggered: false, Delta: 0, Reason: "150 changed lines is within the size budget"},
			},
		},
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal scan response: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal envelope: %v", err)
	}
	for _, key := range []string{"scan_id", "owner", "repo", "pr", "summary", "signals", "report", "generated_at"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("v1 envelope lost the %q field", key)
		}
	}

	var summary map[string]json.RawMessage
	if err := json.Unmarshal(decoded["summary"], &summary); err != nil {
		t.Fatalf("Failed to unmarshal summary: %v", err)
	}
	for _, key := range []string{"title", "state", "base_ref", "draft", "head_sha", "created_at"} {
		if _, ok := summary[key]; !ok {
			t.Errorf("v1 summary lost the %q field", key)
		}
	}

	var signals map[string]json.RawMessage
	if err := json.Unmarshal(decoded["signals"], &signals); err != nil {
		t.Fatalf("Failed to unmarshal signals: %v", err)
	}
	for _, key := range []string{"additions", "deletions", "changed_files_count", "failing_checks", "changes_requested", "age_days"} {
		if _, ok := signals[key]; !ok {
			t.Errorf("v1 signals lost the %q field", key)
		}
	}

	var report map[string]json.RawMessage
	if err := json.Unmarshal(decoded["report"], &report); err != nil {
		t.Fatalf("Failed to unmarshal report: %v", err)
	}
	for _, key := range []string{"total_score", "grade", "rule_results"} {
		if _, ok := report[key]; !ok {
			t.Errorf("v1 report lost the %q field", key)
		}
	}

	var rules []map[string]json.RawMessage
	if err := json.Unmarshal(report["rule_results"], &rules); err != nil {
		t.Fatalf("Failed to unmarshal rule results: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rule results, got %d", len(rules))
	}
	for _, key := range []string{"rule_id", "triggered", "delta", "reason"} {
		if _, ok := rules[0][key]; !ok {
			t.Errorf("v1 rule result lost the %q field", key)
		}
		// The quiet rule must carry the same shape so consumers can
		// render full breakdowns without nil checks.
		if _, ok := rules[1][key]; !ok {
			t.Errorf("v1 rule result omits %q when the rule stays quiet", key)
		}
	}
}

// TestV1ResponseNeverLeaksDiff verifies raw diff content stays inside
// the service. The diff can contain the very secrets the scan flags,
// so it must never appear in an API response.
func TestV1ResponseNeverLeaksDiff(t *testing.T) {
	resp := datatypes.ScanResponse{
		Signals: datatypes.PRSignals{DiffText: "SECRET-DIFF-CONTENT"},
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal scan response: %v", err)
	}
	if bytes.Contains(raw, []byte("SECRET-DIFF-CONTENT")) {
		t.Error("FAIL: serialized response contains raw diff content")
	}
	if bytes.Contains(raw, []byte("diff_text")) {
		t.Error("FAIL: serialized response exposes a diff_text field")
	}
}

// TestV1RuleSetContract pins the rule identifiers and their order.
// Policy files reference rules by these names, and reports list
// results in this order.
func TestV1RuleSetContract(t *testing.T) {
	want := []string{
		"size",
		"file_count",
		"sensitive_path",
		"secret_pattern",
		"unpinned_action",
		"ci_failures",
		"review_blocked",
		"new_contributor",
		"staleness",
	}
	if got := scoring.RuleIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("rule set changed:\ngot  %v\nwant %v", got, want)
	}
}

// TestV1GradeLadder pins the default grade boundaries shipped with
// the v1.0 policy.
func TestV1GradeLadder(t *testing.T) {
	policy, err := scoring.DefaultPolicy()
	if err != nil {
		t.Fatalf("Failed to load default policy: %v", err)
	}

	cases := []struct {
		score int
		grade string
	}{
		{100, "A"}, {90, "A"},
		{89, "B"}, {80, "B"},
		{79, "C"}, {70, "C"},
		{69, "D"}, {60, "D"},
		{59, "F"}, {0, "F"},
	}
	for _, tc := range cases {
		if got := policy.GradeFor(tc.score); got != tc.grade {
			t.Errorf("GradeFor(%d) = %q, want %q", tc.score, got, tc.grade)
		}
	}
}
