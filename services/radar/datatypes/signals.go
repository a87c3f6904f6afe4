// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the radar service.
//
// This file contains the collected input signals for a single pull
// request scan. The collector populates PRSignals once; the scoring
// engine treats it as read-only.
package datatypes

import "time"

// =============================================================================
// Author Association
// =============================================================================

// AuthorAssociation is the PR author's relationship to the repository,
// as reported by the hosting API. An empty value means the field was
// not available; rules that depend on it are skipped.
type AuthorAssociation string

const (
	AssociationOwner            AuthorAssociation = "OWNER"
	AssociationMember           AuthorAssociation = "MEMBER"
	AssociationCollaborator     AuthorAssociation = "COLLABORATOR"
	AssociationContributor      AuthorAssociation = "CONTRIBUTOR"
	AssociationFirstTimer       AuthorAssociation = "FIRST_TIMER"
	AssociationFirstTimeContrib AuthorAssociation = "FIRST_TIME_CONTRIBUTOR"
	AssociationMannequin        AuthorAssociation = "MANNEQUIN"
	AssociationNone             AuthorAssociation = "NONE"
)

// Known reports whether the association carries a value. Unknown
// associations still score; only the empty string marks a data gap.
func (a AuthorAssociation) Known() bool {
	return a != ""
}

// IsNewContributor reports whether the author has no prior history
// with the repository. NONE is a reported value, not a data gap: it
// means the API answered and the author has no association at all.
func (a AuthorAssociation) IsNewContributor() bool {
	return a == AssociationFirstTimeContrib || a == AssociationNone
}

// =============================================================================
// Collected Signals
// =============================================================================

// PRSignals holds everything the scoring engine consumes for one scan.
//
// # Field Semantics
//
// Optional fields use their zero value when the upstream API did not
// provide them: an empty DiffText scans to zero secret matches, a zero
// FailingChecks triggers no CI rule, an empty AuthorAssociation skips
// the contributor rule. The scorer never fails on a zero value.
//
// # Thread Safety
//
// PRSignals is constructed once per scan and read-only afterwards, so
// it is safe to share across goroutines.
type PRSignals struct {
	// Additions is the number of added lines across the PR.
	Additions int `json:"additions"`

	// Deletions is the number of deleted lines across the PR.
	Deletions int `json:"deletions"`

	// ChangedFilesCount is the number of files the PR touches.
	ChangedFilesCount int `json:"changed_files_count"`

	// ChangedFilePaths lists changed paths in API return order.
	ChangedFilePaths []string `json:"changed_file_paths,omitempty"`

	// DiffText is the full unified diff. Empty when unavailable.
	DiffText string `json:"-"`

	// WorkflowFilesTouched lists changed paths under CI workflow
	// locations (.github/workflows and similar).
	WorkflowFilesTouched []string `json:"workflow_files_touched,omitempty"`

	// UnpinnedActionUses lists `uses:` references added in workflow
	// diffs that are not pinned to a full commit SHA.
	UnpinnedActionUses []string `json:"unpinned_action_uses,omitempty"`

	// FailingChecks counts check runs with a failing conclusion.
	FailingChecks int `json:"failing_checks"`

	// ChangesRequested is true when any review requested changes.
	ChangesRequested bool `json:"changes_requested"`

	// AuthorAssociation is the author's repository relationship.
	AuthorAssociation AuthorAssociation `json:"author_association,omitempty"`

	// AgeDays is the time since the PR was opened, in days.
	AgeDays float64 `json:"age_days"`
}

// TotalChangeVolume returns additions plus deletions, the size signal
// the tiered size rule evaluates.
func (s PRSignals) TotalChangeVolume() int {
	return s.Additions + s.Deletions
}

// =============================================================================
// PR Summary Metadata
// =============================================================================

// PRSummary carries descriptive PR metadata for the scan response
// envelope. None of these fields influence scoring.
type PRSummary struct {
	// Title is the PR title.
	Title string `json:"title"`

	// State is "open" or "closed".
	State string `json:"state"`

	// BaseRef is the target branch name.
	BaseRef string `json:"base_ref"`

	// Draft is true for draft PRs.
	Draft bool `json:"draft"`

	// HeadSHA is the head commit the check runs were fetched for.
	HeadSHA string `json:"head_sha"`

	// CreatedAt is when the PR was opened.
	CreatedAt time.Time `json:"created_at"`
}
