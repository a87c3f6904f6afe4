// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scoring

import (
	"regexp"
	"strings"
)

// SecretSignature defines a pattern for detecting leaked credentials.
//
// # Description
//
// SecretSignature contains a regex pattern and metadata for one family
// of secrets (AWS keys, GitHub tokens, PEM headers, and so on). The
// engine reports the family ID, never the matched value; values only
// appear masked inside human-readable reasons.
//
// # Thread Safety
//
// Safe for concurrent reads after ParsePolicy has compiled it.
type SecretSignature struct {
	// ID is the stable family identifier (aws_access_key, ...).
	ID string `yaml:"id" validate:"required"`

	// Description explains what this signature detects.
	Description string `yaml:"description"`

	// Pattern is the regex source.
	Pattern string `yaml:"pattern" validate:"required"`

	// FalsePositiveHints suppress matches on lines that also match
	// any of these patterns (documentation keys, placeholders).
	FalsePositiveHints []string `yaml:"false_positive_hints"`

	compiledPattern *regexp.Regexp
	compiledHints   []*regexp.Regexp
}

// compile builds the pattern and hint regexes. Called once at policy
// parse time; a bad pattern fails the whole policy load.
func (s *SecretSignature) compile() error {
	compiled, err := regexp.Compile(s.Pattern)
	if err != nil {
		return err
	}
	s.compiledPattern = compiled

	s.compiledHints = s.compiledHints[:0]
	for _, hint := range s.FalsePositiveHints {
		compiledHint, err := regexp.Compile(hint)
		if err != nil {
			return err
		}
		s.compiledHints = append(s.compiledHints, compiledHint)
	}
	return nil
}

// FindFirst returns the first match of this signature in line, or
// false if there is none or every match is suppressed by a false
// positive hint.
func (s *SecretSignature) FindFirst(line string) (string, bool) {
	if s.compiledPattern == nil {
		// Uncompiled signatures (hand-built in tests) compile lazily.
		if err := s.compile(); err != nil {
			return "", false
		}
	}

	match := s.compiledPattern.FindString(line)
	if match == "" {
		return "", false
	}

	for _, hint := range s.compiledHints {
		if hint.MatchString(line) {
			return "", false
		}
	}
	return match, true
}

// maskValue redacts a secret for inclusion in a report reason.
//
// Secrets of 8 characters or fewer become "****"; longer ones keep
// the first 2 and last 2 characters with asterisks between.
func maskValue(secret string) string {
	if len(secret) == 0 {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	stars := len(secret) - 4
	if stars < 1 {
		stars = 1
	}
	return secret[:2] + strings.Repeat("*", stars) + secret[len(secret)-2:]
}
