package e2e

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestPolicy_ShowCheckRoundTrip verifies `policy show` emits a policy
// that passes `policy check` unchanged, so teams can start from the
// shipped defaults.
func TestPolicy_ShowCheckRoundTrip(t *testing.T) {
	stdout, stderr, code := runCLI(t, nil, "policy", "show")
	if code != 0 {
		t.Fatalf("policy show exited %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "base_score: 100") {
		t.Fatalf("unexpected policy dump:\n%s", stdout)
	}

	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(stdout), 0o644); err != nil {
		t.Fatalf("Failed to write policy copy: %v", err)
	}

	checkOut, checkErr, checkCode := runCLI(t, nil, "policy", "check", path)
	if checkCode != 0 {
		t.Errorf("round-tripped policy failed validation (exit %d)\nstdout: %s\nstderr: %s",
			checkCode, checkOut, checkErr)
	}
	if !strings.Contains(checkOut, "is valid") {
		t.Errorf("expected a validity confirmation, got: %q", checkOut)
	}
}

// TestPolicy_Check_BuiltIn verifies the no-argument form validates the
// compiled-in defaults.
func TestPolicy_Check_BuiltIn(t *testing.T) {
	stdout, stderr, code := runCLI(t, nil, "policy", "check")
	if code != 0 {
		t.Fatalf("policy check exited %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "built-in") {
		t.Errorf("expected the built-in source in the output, got: %q", stdout)
	}
}

// TestPolicy_Check_Invalid verifies a policy violating the scoring
// bounds exits 1, distinct from the exit 2 of an unreadable file.
func TestPolicy_Check_Invalid(t *testing.T) {
	stdout, _, code := runCLI(t, nil, "policy", "show")
	if code != 0 {
		t.Fatalf("policy show exited %d", code)
	}

	// A base score above the scale cap must fail validation.
	corrupted := strings.Replace(stdout, "base_score: 100", "base_score: 150", 1)
	path := filepath.Join(t.TempDir(), "bad_policy.yaml")
	if err := os.WriteFile(path, []byte(corrupted), 0o644); err != nil {
		t.Fatalf("Failed to write policy copy: %v", err)
	}

	_, stderr, checkCode := runCLI(t, nil, "policy", "check", path)
	if checkCode != 1 {
		t.Errorf("want exit 1 for an invalid policy, got %d", checkCode)
	}
	if !strings.Contains(stderr, "is invalid") {
		t.Errorf("expected the invalidity report on stderr, got: %q", stderr)
	}
}

func TestPolicy_Check_Unreadable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, _, code := runCLI(t, nil, "policy", "check", missing)
	if code != 2 {
		t.Errorf("want exit 2 for an unreadable policy file, got %d", code)
	}
}

// TestPolicy_Check_JSON verifies automation gets a machine-readable
// verdict.
func TestPolicy_Check_JSON(t *testing.T) {
	stdout, _, code := runCLI(t, nil, "policy", "check", "--json")
	if code != 0 {
		t.Fatalf("policy check --json exited %d", code)
	}
	for _, want := range []string{`"valid": true`, `"source": "built-in"`} {
		if !strings.Contains(stdout, want) {
			t.Errorf("JSON verdict is missing %s:\n%s", want, stdout)
		}
	}
}
