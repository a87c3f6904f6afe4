// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are
// interpolated into upstream API request paths and log lines. Using
// these validators keeps malformed references from ever reaching the
// hosting provider and prevents path traversal through crafted
// repository names.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ownerPattern matches valid GitHub logins and organization names.
// Allows: alphanumerics with internal hyphens, no leading or trailing
// hyphen. Max length: 39 characters (the GitHub login limit).
var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?$`)

// repoPattern matches valid repository names.
// Allows: alphanumerics, dots, underscores, hyphens.
// Max length: 100 characters.
var repoPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// ValidateOwner validates a repository owner (user or organization).
//
// Valid owners:
//   - 1-39 characters
//   - Letters A-Z a-z and digits 0-9
//   - Hyphens (-) between alphanumerics, never first or last
//
// Returns an error if the owner is invalid.
//
// Example:
//
//	if err := validation.ValidateOwner(owner); err != nil {
//	    return nil, fmt.Errorf("invalid owner: %w", err)
//	}
//	// Safe to use in an API request path
func ValidateOwner(owner string) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}

	if !ownerPattern.MatchString(owner) {
		return fmt.Errorf("invalid owner %q (must be 1-39 alphanumeric chars with internal hyphens)", owner)
	}

	return nil
}

// ValidateRepoName validates a repository name.
//
// Valid names are 1-100 characters drawn from letters, digits, dots,
// underscores, and hyphens. The reserved names "." and ".." are
// rejected so a crafted name cannot traverse URL paths.
func ValidateRepoName(name string) error {
	if name == "" {
		return fmt.Errorf("repository name cannot be empty")
	}

	if name == "." || name == ".." {
		return fmt.Errorf("invalid repository name %q", name)
	}

	if !repoPattern.MatchString(name) {
		return fmt.Errorf("invalid repository name %q (must be 1-100 chars from A-Za-z0-9._-)", name)
	}

	return nil
}

// ValidatePRNumber validates a pull request number.
func ValidatePRNumber(number int) error {
	if number <= 0 {
		return fmt.Errorf("pull request number must be positive, got %d", number)
	}
	return nil
}

// PRRef identifies one pull request by owner, repository, and number.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

// String returns the canonical "owner/repo#number" form.
func (r PRRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// Validate checks all three components of the reference.
func (r PRRef) Validate() error {
	if err := ValidateOwner(r.Owner); err != nil {
		return err
	}
	if err := ValidateRepoName(r.Repo); err != nil {
		return err
	}
	return ValidatePRNumber(r.Number)
}

// ParsePRRef parses and validates the "owner/repo#number" reference
// form accepted on the command line.
//
// Example:
//
//	ref, err := validation.ParsePRRef("octo/radar#7")
//	if err != nil {
//	    return err
//	}
//	// ref.Owner == "octo", ref.Repo == "radar", ref.Number == 7
func ParsePRRef(s string) (PRRef, error) {
	trimmed := strings.TrimSpace(s)

	slash := strings.Index(trimmed, "/")
	hash := strings.LastIndex(trimmed, "#")
	if slash < 0 || hash < slash {
		return PRRef{}, fmt.Errorf("invalid pull request reference %q (expected owner/repo#number)", s)
	}

	number, err := strconv.Atoi(trimmed[hash+1:])
	if err != nil {
		return PRRef{}, fmt.Errorf("invalid pull request number in %q (expected owner/repo#number)", s)
	}

	ref := PRRef{
		Owner:  trimmed[:slash],
		Repo:   trimmed[slash+1 : hash],
		Number: number,
	}
	if err := ref.Validate(); err != nil {
		return PRRef{}, err
	}
	return ref, nil
}
