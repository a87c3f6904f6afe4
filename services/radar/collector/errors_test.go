// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package collector

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-github/v66/github"
)

func respErr(status int) *github.ErrorResponse {
	return &github.ErrorResponse{
		Response: &http.Response{
			StatusCode: status,
			Request:    &http.Request{},
		},
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "rate limit type", err: &github.RateLimitError{}, want: ErrRateLimited},
		{name: "abuse rate limit type", err: &github.AbuseRateLimitError{}, want: ErrRateLimited},
		{name: "http 404", err: respErr(http.StatusNotFound), want: ErrNotFound},
		{name: "http 401", err: respErr(http.StatusUnauthorized), want: ErrUnauthorized},
		{name: "http 403", err: respErr(http.StatusForbidden), want: ErrUnauthorized},
		{name: "http 429", err: respErr(http.StatusTooManyRequests), want: ErrRateLimited},
		{name: "http 500", err: respErr(http.StatusInternalServerError), want: ErrUpstream},
		{name: "wrapped 404", err: fmt.Errorf("outer: %w", respErr(http.StatusNotFound)), want: ErrNotFound},
		{name: "plain error", err: errors.New("connection reset"), want: ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}
