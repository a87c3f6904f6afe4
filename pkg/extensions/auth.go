// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned when authentication fails. Provider
// implementations should wrap this error with additional context.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// authentication.
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated caller.
	// This is the only required field and must never be empty.
	UserID string

	// Roles contains the caller's role memberships.
	// Common roles: "admin", "scanner", "viewer"
	Roles []string
}

// HasRole checks if the caller has a specific role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns caller
// identity.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
//
// # Open Source Behavior
//
// The default NopAuthProvider always returns a valid "local-user" with
// admin privileges, so the CLI and an unprotected local server work
// without any authentication infrastructure. Deployments that expose
// the HTTP API configure StaticTokenProvider or inject an identity
// provider backed implementation.
type AuthProvider interface {
	// Validate checks if the token is valid and returns the caller's
	// identity.
	//
	// Returns ErrUnauthorized (or wrapped) if invalid, other errors
	// for provider failures.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider is the default authentication provider for open
// source deployments.
//
// It always returns a valid local user with admin privileges, enabling
// the CLI and local server to function without auth infrastructure.
//
// Thread-safe: this implementation has no mutable state.
type NopAuthProvider struct{}

// Validate always returns a valid local user with admin privileges.
// The token is ignored, including the empty string.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

// StaticTokenProvider validates bearer tokens against a fixed set
// configured at startup.
//
// # Description
//
// Tokens are stored as SHA-256 digests and compared in constant time,
// so neither process memory inspection nor response timing leaks the
// configured values. This is the standard provider for small hosted
// deployments where a handful of CI systems call the scan API.
//
// # Thread Safety
//
// Safe for concurrent use; the token set is immutable after
// construction.
type StaticTokenProvider struct {
	tokenHashes [][sha256.Size]byte
}

var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*StaticTokenProvider)(nil)
)

// NewStaticTokenProvider builds a provider from the given tokens.
// Blank entries are ignored.
func NewStaticTokenProvider(tokens []string) *StaticTokenProvider {
	p := &StaticTokenProvider{}
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		p.tokenHashes = append(p.tokenHashes, sha256.Sum256([]byte(token)))
	}
	return p
}

// TokenCount reports how many tokens are configured.
func (p *StaticTokenProvider) TokenCount() int {
	return len(p.tokenHashes)
}

// Validate accepts any configured token and rejects everything else.
func (p *StaticTokenProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if len(p.tokenHashes) == 0 {
		return nil, fmt.Errorf("no api tokens configured: %w", ErrUnauthorized)
	}

	digest := sha256.Sum256([]byte(token))
	for _, want := range p.tokenHashes {
		if subtle.ConstantTimeCompare(digest[:], want[:]) == 1 {
			return &AuthInfo{
				UserID: "api-client",
				Roles:  []string{"scanner"},
			}, nil
		}
	}
	return nil, fmt.Errorf("unknown api token: %w", ErrUnauthorized)
}
