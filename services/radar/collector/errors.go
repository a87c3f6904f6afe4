// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package collector

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v66/github"
)

// Sentinel errors for upstream failures. Callers branch on these with
// errors.Is; the wrapped chain keeps the underlying API detail.
var (
	// ErrNotFound means the repository or pull request does not exist
	// or is not visible with the current credentials.
	ErrNotFound = errors.New("pull request not found")

	// ErrUnauthorized means the upstream rejected our credentials.
	ErrUnauthorized = errors.New("upstream authorization failed")

	// ErrRateLimited means the upstream rate limit is exhausted.
	ErrRateLimited = errors.New("upstream rate limit exhausted")

	// ErrUpstream covers every other upstream failure.
	ErrUpstream = errors.New("upstream request failed")
)

// classifyError maps a go-github error to one of the sentinels.
func classifyError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return ErrRateLimited
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return ErrRateLimited
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrUnauthorized
		case http.StatusTooManyRequests:
			return ErrRateLimited
		}
	}
	return ErrUpstream
}
