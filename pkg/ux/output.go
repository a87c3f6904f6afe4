// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the riskradar CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Radar color palette - signal greens through alert reds
var (
	// Primary palette
	ColorSignalGreen = lipgloss.Color("#3DDC84") // Clean scans, A grades
	ColorScopeTeal   = lipgloss.Color("#29B6A8") // Brand accents, titles
	ColorSweepBlue   = lipgloss.Color("#3E8FB0") // Informational elements
	ColorCaution     = lipgloss.Color("#E8B93E") // Elevated risk, C grades
	ColorAlertAmber  = lipgloss.Color("#E2943B") // D grades, warnings
	ColorAlertRed    = lipgloss.Color("#D9534F") // F grades, errors
	ColorMuted       = lipgloss.Color("#5C6B73") // Secondary text, borders
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	// Text styles
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Good     lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	// Box styles
	ReportBox lipgloss.Style
	ErrorBox  lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorScopeTeal),
	Subtitle: lipgloss.NewStyle().Foreground(ColorSweepBlue),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
	Good:     lipgloss.NewStyle().Foreground(ColorSignalGreen),
	Warning:  lipgloss.NewStyle().Foreground(ColorCaution),
	Error:    lipgloss.NewStyle().Foreground(ColorAlertRed),

	ReportBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorScopeTeal).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAlertRed).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconTriggered Icon = "✗"
	IconClean     Icon = "✓"
	IconSkipped   Icon = "○"
	IconArrow     Icon = "→"
	IconBullet    Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconClean:
		return Styles.Good.Render(string(i))
	case IconTriggered:
		return Styles.Error.Render(string(i))
	case IconSkipped:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// gradeStyles maps letter grades to their badge styles. Unknown grades
// fall back to the muted style.
var gradeStyles = map[string]lipgloss.Style{
	"A": lipgloss.NewStyle().Bold(true).Foreground(ColorSignalGreen),
	"B": lipgloss.NewStyle().Bold(true).Foreground(ColorScopeTeal),
	"C": lipgloss.NewStyle().Bold(true).Foreground(ColorCaution),
	"D": lipgloss.NewStyle().Bold(true).Foreground(ColorAlertAmber),
	"F": lipgloss.NewStyle().Bold(true).Foreground(ColorAlertRed),
}

// GradeBadge renders a letter grade with its severity color.
func GradeBadge(grade string) string {
	if style, ok := gradeStyles[grade]; ok {
		return style.Render(grade)
	}
	return Styles.Muted.Render(grade)
}

// ScoreStyle returns the style matching a 0-100 score so score and
// grade render in consistent colors.
func ScoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 90:
		return gradeStyles["A"]
	case score >= 80:
		return gradeStyles["B"]
	case score >= 70:
		return gradeStyles["C"]
	case score >= 60:
		return gradeStyles["D"]
	default:
		return gradeStyles["F"]
	}
}

// IsInteractive reports whether w is a terminal. Styled output should
// only be produced for interactive terminals; piped output (CI, shell
// scripts) gets plain text.
func IsInteractive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Title prints a styled title line to stdout.
func Title(text string) {
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a message with a clean checkmark.
func Success(text string) {
	fmt.Printf("%s %s\n", IconClean.Render(), text)
}

// Warn prints a warning message to stderr.
func Warn(text string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", Styles.Warning.Render("⚠"), text)
}

// Fail prints an error message to stderr.
func Fail(text string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", IconTriggered.Render(), Styles.Error.Render(text))
}
