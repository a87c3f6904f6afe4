// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"testing"
)

func TestGradeBadge_KnownGrades(t *testing.T) {
	for _, grade := range []string{"A", "B", "C", "D", "F"} {
		t.Run(grade, func(t *testing.T) {
			got := GradeBadge(grade)
			if !strings.Contains(got, grade) {
				t.Errorf("GradeBadge(%q) = %q, does not contain the grade", grade, got)
			}
		})
	}
}

func TestGradeBadge_UnknownGrade(t *testing.T) {
	got := GradeBadge("Z")
	if !strings.Contains(got, "Z") {
		t.Errorf("GradeBadge(Z) = %q, want literal passthrough", got)
	}
}

func TestScoreStyle_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		grade string
	}{
		{100, "A"},
		{90, "A"},
		{89, "B"},
		{80, "B"},
		{79, "C"},
		{70, "C"},
		{69, "D"},
		{60, "D"},
		{59, "F"},
		{0, "F"},
	}

	for _, tt := range tests {
		got := ScoreStyle(tt.score)
		want := gradeStyles[tt.grade]
		if got.GetForeground() != want.GetForeground() {
			t.Errorf("ScoreStyle(%d) color = %v, want %s color %v",
				tt.score, got.GetForeground(), tt.grade, want.GetForeground())
		}
	}
}

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconClean, IconTriggered, IconSkipped, IconArrow, IconBullet} {
		if got := icon.Render(); !strings.Contains(got, string(icon)) {
			t.Errorf("Icon(%q).Render() = %q, missing glyph", icon, got)
		}
	}
}
