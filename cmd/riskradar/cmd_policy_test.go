// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/riskradarhq/riskradar/services/radar/scoring"
)

func writeTempPolicy(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp policy: %v", err)
	}
	return path
}

func TestCheckPolicy(t *testing.T) {
	t.Run("built-in is valid", func(t *testing.T) {
		result, exit := checkPolicy("")
		if exit != ExitSuccess {
			t.Fatalf("built-in policy check exited %d: %s", exit, result.Error)
		}
		if !result.Valid || result.Source != "built-in" {
			t.Errorf("unexpected result %+v", result)
		}
		if result.Grades == 0 || result.Version == 0 {
			t.Errorf("summary fields missing: %+v", result)
		}
	})

	t.Run("valid file", func(t *testing.T) {
		path := writeTempPolicy(t, scoring.DefaultPolicyYAML())

		result, exit := checkPolicy(path)
		if exit != ExitSuccess {
			t.Fatalf("valid file exited %d: %s", exit, result.Error)
		}
		if result.Source != path {
			t.Errorf("source = %q, want %q", result.Source, path)
		}
	})

	t.Run("invalid file", func(t *testing.T) {
		// A base score above the scale cap must fail validation.
		broken := bytes.Replace(scoring.DefaultPolicyYAML(),
			[]byte("base_score: 100"), []byte("base_score: 150"), 1)
		path := writeTempPolicy(t, broken)

		result, exit := checkPolicy(path)
		if exit != ExitCheckFailed {
			t.Fatalf("invalid policy exited %d, want %d", exit, ExitCheckFailed)
		}
		if result.Valid || result.Error == "" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("unreadable file", func(t *testing.T) {
		result, exit := checkPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
		if exit != ExitError {
			t.Fatalf("missing file exited %d, want %d", exit, ExitError)
		}
		if result.Error == "" {
			t.Error("expected a read error in the result")
		}
	})
}
