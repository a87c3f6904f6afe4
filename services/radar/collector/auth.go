// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Credential handling for the collector.
//
// Long-lived credentials (API tokens, the App private key) are sealed
// in memguard enclaves so they are encrypted at rest in process memory
// and never sit in the plain heap between uses. Decrypted copies live
// only for the duration of a single request or JWT mint.
package collector

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
	"golang.org/x/sys/unix"
)

const (
	// defaultAPIBaseURL is the public GitHub API endpoint.
	defaultAPIBaseURL = "https://api.github.com"

	// appJWTLifetime is the validity window GitHub allows for App
	// JWTs, minus a safety margin.
	appJWTLifetime = 9 * time.Minute

	// installationTokenTTL is how long we reuse an installation
	// token. GitHub issues them for 60 minutes.
	installationTokenTTL = 50 * time.Minute
)

var memguardInitOnce sync.Once

// initMemguard sets up interrupt handling so enclaves are wiped on
// SIGINT/SIGTERM, and logs whether the kernel will let us mlock.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()

		limitKB := mlockLimitKB()
		if limitKB == -1 {
			slog.Debug("Secure credential memory initialized",
				"mlock_limit", "unlimited")
		} else {
			slog.Debug("Secure credential memory initialized",
				"mlock_limit_kb", limitKB)
		}
	})
}

// mlockLimitKB returns the RLIMIT_MEMLOCK soft limit in kilobytes, or
// -1 when unlimited or undeterminable.
func mlockLimitKB() int64 {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return -1
	}
	return int64(rlimit.Cur / 1024)
}

// PurgeSecrets wipes all enclave-held credentials. Call during
// graceful shutdown.
func PurgeSecrets() {
	memguard.Purge()
	slog.Debug("Purged credential enclaves")
}

// =============================================================================
// Static Token Source
// =============================================================================

// enclavedTokenSource serves a fixed API token out of an enclave.
type enclavedTokenSource struct {
	enclave *memguard.Enclave
}

var _ oauth2.TokenSource = (*enclavedTokenSource)(nil)

// NewEnclavedTokenSource seals a static token and returns a source
// that decrypts it per request.
func NewEnclavedTokenSource(token string) oauth2.TokenSource {
	initMemguard()
	// NewEnclave wipes the byte slice it is handed.
	return &enclavedTokenSource{enclave: memguard.NewEnclave([]byte(token))}
}

func (s *enclavedTokenSource) Token() (*oauth2.Token, error) {
	buf, err := s.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open token enclave: %w", err)
	}
	defer buf.Destroy()

	return &oauth2.Token{AccessToken: buf.String()}, nil
}

// =============================================================================
// GitHub App Token Source
// =============================================================================

// AppConfig identifies a GitHub App installation.
type AppConfig struct {
	// AppID is the numeric App identifier, used as the JWT issuer.
	AppID string

	// InstallationID selects the installation to mint tokens for.
	InstallationID string

	// PrivateKeyPath points at the App's RSA private key (PEM).
	PrivateKeyPath string

	// BaseURL overrides the API endpoint for GitHub Enterprise.
	BaseURL string
}

// Complete reports whether every required field is set.
func (c AppConfig) Complete() bool {
	return c.AppID != "" && c.InstallationID != "" && c.PrivateKeyPath != ""
}

// tokenCache holds one installation token until it expires.
type tokenCache struct {
	mu    sync.Mutex
	token string
	exp   time.Time
}

func (t *tokenCache) Get() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Now().Before(t.exp) {
		return t.token, true
	}
	return "", false
}

func (t *tokenCache) Set(token string, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.token = token
	t.exp = time.Now().Add(ttl)
}

// AppTokenSource mints installation tokens for a GitHub App.
//
// # Description
//
// Each mint signs a short-lived RS256 JWT with the App private key and
// exchanges it for an installation token, which is cached for
// installationTokenTTL. The private key PEM lives in an enclave and is
// decrypted only while signing.
//
// # Thread Safety
//
// Safe for concurrent use.
type AppTokenSource struct {
	cfg        AppConfig
	keyEnclave *memguard.Enclave
	http       *http.Client
	cache      *tokenCache
}

var _ oauth2.TokenSource = (*AppTokenSource)(nil)

// NewAppTokenSource loads and seals the App private key.
//
// The key file is parsed once up front so a bad key fails at startup,
// not on the first scan.
func NewAppTokenSource(cfg AppConfig) (*AppTokenSource, error) {
	if !cfg.Complete() {
		return nil, fmt.Errorf("app auth requires app ID, installation ID, and private key path")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	initMemguard()

	pemBytes, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read app private key: %w", err)
	}
	if _, err := parsePrivateKey(pemBytes); err != nil {
		wipe(pemBytes)
		return nil, fmt.Errorf("failed to parse app private key: %w", err)
	}

	return &AppTokenSource{
		cfg:        cfg,
		keyEnclave: memguard.NewEnclave(pemBytes),
		http:       &http.Client{Timeout: 15 * time.Second},
		cache:      &tokenCache{},
	}, nil
}

// Token returns a valid installation token, minting one if the cached
// token has expired.
func (s *AppTokenSource) Token() (*oauth2.Token, error) {
	if cached, ok := s.cache.Get(); ok {
		return &oauth2.Token{AccessToken: cached}, nil
	}

	appJWT, err := s.createJWT()
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens",
		s.cfg.BaseURL, s.cfg.InstallationID)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	res, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("installation token request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("installation token status %d: %s", res.StatusCode, string(msg))
	}

	var r struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if r.Token == "" {
		return nil, fmt.Errorf("empty installation token")
	}

	s.cache.Set(r.Token, installationTokenTTL)
	slog.Debug("Minted installation token",
		"installation_id", s.cfg.InstallationID,
		"ttl", installationTokenTTL)

	return &oauth2.Token{
		AccessToken: r.Token,
		Expiry:      time.Now().Add(installationTokenTTL),
	}, nil
}

// createJWT signs a short-lived App JWT. The key is decrypted only
// for the duration of this call.
func (s *AppTokenSource) createJWT() (string, error) {
	buf, err := s.keyEnclave.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open key enclave: %w", err)
	}
	defer buf.Destroy()

	key, err := parsePrivateKey(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to parse app private key: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		// Backdated a minute to absorb clock skew with GitHub.
		IssuedAt:  jwt.NewNumericDate(now.Add(-1 * time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
		Issuer:    s.cfg.AppID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// parsePrivateKey accepts PKCS#1 and PKCS#8 encoded RSA keys.
func parsePrivateKey(b []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("invalid pem")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	pkcs8, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	privateKey, ok := pkcs8.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("pkcs8 key is not RSA")
	}
	return privateKey, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// Source Selection
// =============================================================================

// ResolveTokenSource picks the strongest configured credential: App
// auth when fully configured, then a static token, then nil for
// anonymous access (public repositories only, tight rate limits).
func ResolveTokenSource(appCfg AppConfig, staticToken string) (oauth2.TokenSource, error) {
	if appCfg.Complete() {
		source, err := NewAppTokenSource(appCfg)
		if err != nil {
			return nil, err
		}
		slog.Info("Using GitHub App authentication",
			"app_id", appCfg.AppID,
			"installation_id", appCfg.InstallationID)
		return source, nil
	}

	if staticToken != "" {
		slog.Info("Using static token authentication")
		return NewEnclavedTokenSource(staticToken), nil
	}

	slog.Warn("No GitHub credentials configured, using anonymous access")
	return nil, nil
}
