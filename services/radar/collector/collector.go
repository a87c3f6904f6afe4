// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package collector fetches scoring signals for a pull request from
// the hosting API.
//
// The collector is pure I/O: it gathers raw facts and performs no
// scoring. Fetch failures surface as typed sentinel errors so callers
// can map them to transport responses; there are no retries here, the
// caller owns retry policy.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/riskradarhq/riskradar/services/radar/datatypes"
	"github.com/riskradarhq/riskradar/services/radar/diffscan"
)

// maxFilePages bounds ListFiles pagination. Three pages of 100 cover
// any PR the scoring rules distinguish; beyond that the path list is
// truncated and the file-count signal still comes from the PR record.
const maxFilePages = 3

// failingConclusions are the check-run conclusions counted as CI
// failures.
var failingConclusions = map[string]bool{
	"failure":         true,
	"timed_out":       true,
	"action_required": true,
	"cancelled":       true,
}

// Collector gathers the signals for one pull request.
type Collector interface {
	// CollectPR fetches all scoring signals for owner/repo#number.
	CollectPR(ctx context.Context, owner, repo string, number int) (*Result, error)
}

// Result bundles the scoring inputs with descriptive PR metadata.
type Result struct {
	// Signals is the scoring engine's input.
	Signals datatypes.PRSignals `json:"signals"`

	// Summary is response-envelope metadata, never scored.
	Summary datatypes.PRSummary `json:"summary"`
}

// Options configures a GitHubCollector.
type Options struct {
	// TokenSource supplies API credentials. Nil means anonymous.
	TokenSource oauth2.TokenSource

	// BaseURL overrides the API endpoint for GitHub Enterprise.
	// Empty uses the public API.
	BaseURL string

	// HTTPClient overrides the transport. Nil uses a default with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Limiter throttles outbound calls per repository. Nil disables
	// client-side throttling.
	Limiter *Limiter

	// Now overrides the clock for PR age computation in tests.
	Now func() time.Time
}

// GitHubCollector collects signals through the GitHub REST API.
//
// # Description
//
// One scan issues up to five sequential API calls: the PR record, the
// raw diff, the changed file list, the submitted reviews, and the
// check runs for the head commit. Any failed call aborts the scan
// with a typed error, except an oversized diff (HTTP 406) which
// degrades to an empty diff so the remaining rules still score.
//
// # Thread Safety
//
// Safe for concurrent use.
type GitHubCollector struct {
	client  *github.Client
	limiter *Limiter
	now     func() time.Time
}

var _ Collector = (*GitHubCollector)(nil)

// New builds a collector from Options.
func New(opts Options) (*GitHubCollector, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	if opts.TokenSource != nil {
		// Route the oauth2 transport over our base client so its
		// timeout still applies.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, opts.TokenSource)
	}

	client := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid api base url %q: %w", opts.BaseURL, err)
		}
	}

	return newCollector(client, opts.Limiter, opts.Now), nil
}

// NewFromClient wraps an existing go-github client. Used by tests to
// point the collector at a stub server.
func NewFromClient(client *github.Client, limiter *Limiter) *GitHubCollector {
	return newCollector(client, limiter, nil)
}

func newCollector(client *github.Client, limiter *Limiter, now func() time.Time) *GitHubCollector {
	if now == nil {
		now = time.Now
	}
	return &GitHubCollector{
		client:  client,
		limiter: limiter,
		now:     now,
	}
}

// CollectPR implements Collector.
func (c *GitHubCollector) CollectPR(ctx context.Context, owner, repo string, number int) (_ *Result, retErr error) {
	start := time.Now()
	ctx, span := startCollectSpan(ctx, owner, repo, number)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
		}
		span.End()
		recordCollectMetrics(ctx, time.Since(start), retErr)
	}()

	pr, err := c.fetchPull(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Signals: datatypes.PRSignals{
			Additions:         pr.GetAdditions(),
			Deletions:         pr.GetDeletions(),
			ChangedFilesCount: pr.GetChangedFiles(),
			AuthorAssociation: datatypes.AuthorAssociation(pr.GetAuthorAssociation()),
		},
		Summary: datatypes.PRSummary{
			Title:     pr.GetTitle(),
			State:     pr.GetState(),
			BaseRef:   pr.GetBase().GetRef(),
			Draft:     pr.GetDraft(),
			HeadSHA:   pr.GetHead().GetSHA(),
			CreatedAt: pr.GetCreatedAt().Time,
		},
	}
	if created := pr.GetCreatedAt().Time; !created.IsZero() {
		result.Signals.AgeDays = c.now().Sub(created).Hours() / 24
	}

	diffText, err := c.fetchDiff(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	result.Signals.DiffText = diffText

	paths, err := c.fetchChangedPaths(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	result.Signals.ChangedFilePaths = paths

	changesRequested, err := c.fetchChangesRequested(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	result.Signals.ChangesRequested = changesRequested

	if sha := result.Summary.HeadSHA; sha != "" {
		failing, err := c.fetchFailingChecks(ctx, owner, repo, sha)
		if err != nil {
			return nil, err
		}
		result.Signals.FailingChecks = failing
	} else {
		slog.Debug("PR record carried no head SHA, skipping check runs",
			"owner", owner, "repo", repo, "number", number)
	}

	// Derived signals, computed locally from the fetched data.
	result.Signals.WorkflowFilesTouched = diffscan.WorkflowFiles(paths)
	result.Signals.UnpinnedActionUses = diffscan.UnpinnedUsesInDiff(diffText)

	slog.Debug("Collected PR signals",
		"owner", owner,
		"repo", repo,
		"number", number,
		"change_volume", result.Signals.TotalChangeVolume(),
		"changed_files", result.Signals.ChangedFilesCount,
		"failing_checks", result.Signals.FailingChecks,
		"diff_bytes", len(diffText))

	return result, nil
}

// wait blocks on the per-repository limiter when one is configured.
func (c *GitHubCollector) wait(ctx context.Context, owner, repo string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx, owner+"/"+repo); err != nil {
		return fmt.Errorf("rate limiter wait: %w: %w", ErrUpstream, err)
	}
	return nil
}

func (c *GitHubCollector) fetchPull(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	if err := c.wait(ctx, owner, repo); err != nil {
		return nil, err
	}

	callStart := time.Now()
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	recordRequestMetrics(ctx, "get_pull", time.Since(callStart), err)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request %s/%s#%d: %w: %w",
			owner, repo, number, classifyError(err), err)
	}
	return pr, nil
}

// fetchDiff retrieves the unified diff. GitHub refuses to render
// diffs past its size cap with 406; that case degrades to an empty
// diff instead of failing the scan.
func (c *GitHubCollector) fetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	if err := c.wait(ctx, owner, repo); err != nil {
		return "", err
	}

	callStart := time.Now()
	raw, _, err := c.client.PullRequests.GetRaw(ctx, owner, repo, number,
		github.RawOptions{Type: github.Diff})
	recordRequestMetrics(ctx, "get_diff", time.Since(callStart), err)
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil &&
			respErr.Response.StatusCode == http.StatusNotAcceptable {
			slog.Warn("Diff exceeds upstream size cap, scanning without diff content",
				"owner", owner, "repo", repo, "number", number)
			return "", nil
		}
		return "", fmt.Errorf("fetch diff %s/%s#%d: %w: %w",
			owner, repo, number, classifyError(err), err)
	}
	return raw, nil
}

func (c *GitHubCollector) fetchChangedPaths(ctx context.Context, owner, repo string, number int) ([]string, error) {
	var paths []string
	opts := &github.ListOptions{PerPage: 100}

	for page := 0; page < maxFilePages; page++ {
		if err := c.wait(ctx, owner, repo); err != nil {
			return nil, err
		}

		callStart := time.Now()
		files, resp, err := c.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		recordRequestMetrics(ctx, "list_files", time.Since(callStart), err)
		if err != nil {
			return nil, fmt.Errorf("list changed files %s/%s#%d: %w: %w",
				owner, repo, number, classifyError(err), err)
		}

		for _, f := range files {
			if name := f.GetFilename(); name != "" {
				paths = append(paths, name)
			}
		}

		if resp.NextPage == 0 {
			return paths, nil
		}
		opts.Page = resp.NextPage
	}

	slog.Debug("Changed file list truncated at page cap",
		"owner", owner, "repo", repo, "number", number,
		"paths", len(paths))
	return paths, nil
}

func (c *GitHubCollector) fetchChangesRequested(ctx context.Context, owner, repo string, number int) (bool, error) {
	if err := c.wait(ctx, owner, repo); err != nil {
		return false, err
	}

	callStart := time.Now()
	reviews, _, err := c.client.PullRequests.ListReviews(ctx, owner, repo, number,
		&github.ListOptions{PerPage: 100})
	recordRequestMetrics(ctx, "list_reviews", time.Since(callStart), err)
	if err != nil {
		return false, fmt.Errorf("list reviews %s/%s#%d: %w: %w",
			owner, repo, number, classifyError(err), err)
	}

	for _, review := range reviews {
		if review.GetState() == "CHANGES_REQUESTED" {
			return true, nil
		}
	}
	return false, nil
}

func (c *GitHubCollector) fetchFailingChecks(ctx context.Context, owner, repo, ref string) (int, error) {
	if err := c.wait(ctx, owner, repo); err != nil {
		return 0, err
	}

	callStart := time.Now()
	runs, _, err := c.client.Checks.ListCheckRunsForRef(ctx, owner, repo, ref,
		&github.ListCheckRunsOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		})
	recordRequestMetrics(ctx, "list_check_runs", time.Since(callStart), err)
	if err != nil {
		return 0, fmt.Errorf("list check runs %s/%s@%s: %w: %w",
			owner, repo, ref, classifyError(err), err)
	}

	failing := 0
	for _, run := range runs.CheckRuns {
		if failingConclusions[run.GetConclusion()] {
			failing++
		}
	}
	return failing, nil
}
