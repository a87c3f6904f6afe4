// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package radar provides the core risk scanning service for RiskRadar.
//
// This package contains the main Service type that coordinates all
// components of the service: HTTP routing, the GitHub signal collector,
// the scoring policy store with hot reload, and observability
// infrastructure.
//
// # Hosted Integration
//
// The service supports dependency injection via extensions.ServiceOptions,
// enabling hosted deployments to provide custom implementations of:
//   - AuthProvider: API token validation (static tokens, SSO)
//   - AuditLogger: Compliance audit logging
//
// # Usage
//
// Local (uses no-op defaults):
//
//	cfg := radar.ConfigFromEnv()
//	svc, err := radar.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
//
// Hosted (with custom implementations):
//
//	opts := extensions.DefaultOptions().
//	    WithAuth(customAuth).
//	    WithAudit(customAudit)
//	svc, err := radar.New(cfg, &opts)
package radar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/riskradarhq/riskradar/pkg/extensions"
	"github.com/riskradarhq/riskradar/services/radar/collector"
	"github.com/riskradarhq/riskradar/services/radar/observability"
	"github.com/riskradarhq/riskradar/services/radar/routes"
	"github.com/riskradarhq/riskradar/services/radar/scoring"
	"github.com/riskradarhq/riskradar/services/radar/telemetry"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the radar service.
//
// Implementations must be safe for concurrent use. Run blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and the policy watcher and blocks
	// until the context is cancelled or a component fails. Shutdown is
	// graceful: in-flight scans get a drain window before the listener
	// closes.
	Run(ctx context.Context) error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify routes after construction.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds radar service configuration.
//
// Values can be populated from environment variables via ConfigFromEnv,
// or programmatically for testing. All fields have working defaults.
type Config struct {
	// Port is the HTTP server port. Default: 8184
	Port int

	// Version is reported by /healthz and attached to telemetry.
	// Default: "dev"
	Version string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses GIN_MODE env var or "release"
	GinMode string

	// PolicyPath is the scoring policy YAML file. When empty the
	// compiled-in defaults are used and hot reload is unavailable.
	PolicyPath string

	// PolicyWatch enables hot reload of PolicyPath on file change.
	// Ignored when PolicyPath is empty.
	PolicyWatch bool

	// StaticToken is a GitHub personal access token. Ignored when App
	// credentials are configured.
	StaticToken string

	// App holds GitHub App credentials. When complete, App auth takes
	// precedence over StaticToken.
	App collector.AppConfig

	// GitHubBaseURL points the collector at a GitHub Enterprise
	// instance. Empty means api.github.com.
	GitHubBaseURL string

	// APITokens are accepted inbound bearer tokens. When non-empty the
	// API group requires authentication. Ignored when the caller
	// supplies its own AuthProvider.
	APITokens []string

	// UpstreamRPS and UpstreamBurst bound the per-repository request
	// rate against the hosting provider. Defaults: 5 rps, burst 10.
	UpstreamRPS   int
	UpstreamBurst int

	// Telemetry overrides the exporter configuration. Nil means
	// telemetry.DefaultConfig(), which reads the OTEL_* environment.
	Telemetry *telemetry.Config
}

// ConfigFromEnv builds a Config from RADAR_* environment variables.
//
// Unset variables keep their defaults; malformed numeric values are
// logged and ignored rather than failing startup.
func ConfigFromEnv() Config {
	cfg := Config{
		Port:          envInt("RADAR_PORT", 8184),
		Version:       envOr("RADAR_VERSION", "dev"),
		PolicyPath:    os.Getenv("RADAR_POLICY_PATH"),
		PolicyWatch:   envBool("RADAR_POLICY_WATCH", true),
		GitHubBaseURL: os.Getenv("RADAR_GITHUB_BASE_URL"),
		UpstreamRPS:   envInt("RADAR_UPSTREAM_RPS", 5),
		UpstreamBurst: envInt("RADAR_UPSTREAM_BURST", 10),
	}

	cfg.StaticToken = os.Getenv("GITHUB_TOKEN")
	if cfg.StaticToken == "" {
		cfg.StaticToken = os.Getenv("GH_TOKEN")
	}

	cfg.App = collector.AppConfig{
		AppID:          os.Getenv("RADAR_GITHUB_APP_ID"),
		InstallationID: os.Getenv("RADAR_GITHUB_APP_INSTALLATION_ID"),
		PrivateKeyPath: os.Getenv("RADAR_GITHUB_APP_PRIVATE_KEY"),
		BaseURL:        cfg.GitHubBaseURL,
	}

	if raw := os.Getenv("RADAR_API_TOKENS"); raw != "" {
		for _, token := range strings.Split(raw, ",") {
			if token = strings.TrimSpace(token); token != "" {
				cfg.APITokens = append(cfg.APITokens, token)
			}
		}
	}

	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// All fields are read-only after New returns; the policy store handles
// its own synchronization for hot reload.
type service struct {
	config            Config
	opts              extensions.ServiceOptions
	router            *gin.Engine
	collector         collector.Collector
	store             *scoring.PolicyStore
	watcher           *scoring.PolicyWatcher
	telemetryShutdown func(context.Context) error
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a radar Service with the given configuration.
//
// New initializes all components in order:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing and metrics export
//  3. Registers Prometheus scan metrics
//  4. Loads and compiles the scoring policy (file or built-in)
//  5. Creates the policy watcher when hot reload is enabled
//  6. Resolves GitHub credentials and builds the collector
//  7. Sets up HTTP routes with extension options
//
// If opts is nil, DefaultOptions() is used; RADAR_API_TOKENS then
// upgrades the default NopAuthProvider to a StaticTokenProvider.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Apply extension options (use defaults if nil)
	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}
	if len(s.config.APITokens) > 0 {
		if _, isNop := s.opts.AuthProvider.(*extensions.NopAuthProvider); isNop {
			provider := extensions.NewStaticTokenProvider(s.config.APITokens)
			s.opts = s.opts.WithAuth(provider)
			slog.Info("API authentication enabled", "tokens", provider.TokenCount())
		}
	}

	if err := s.initTelemetry(); err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	// Prometheus collectors register once per process.
	if observability.DefaultMetrics == nil {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus scan metrics")
	}

	if err := s.initPolicy(); err != nil {
		s.cleanup()
		return nil, err
	}

	if err := s.initCollector(); err != nil {
		s.cleanup()
		return nil, err
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until ctx is cancelled or a
// component fails. The policy watcher runs alongside the listener; on
// cancellation the server drains in-flight requests for up to five
// seconds before closing.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if s.watcher != nil {
		g.Go(func() error {
			s.watcher.Start(ctx)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("Starting radar server", "port", s.config.Port, "version", s.config.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down radar server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8184
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.UpstreamRPS <= 0 {
		cfg.UpstreamRPS = 5
	}
	if cfg.UpstreamBurst <= 0 {
		cfg.UpstreamBurst = 10
	}
	return cfg
}

// initTelemetry starts trace and metric export.
func (s *service) initTelemetry() error {
	tcfg := telemetry.DefaultConfig()
	if s.config.Telemetry != nil {
		tcfg = *s.config.Telemetry
	}
	tcfg.ServiceVersion = s.config.Version

	shutdown, err := telemetry.Init(context.Background(), tcfg)
	if err != nil {
		return err
	}
	s.telemetryShutdown = shutdown
	return nil
}

// initPolicy loads the scoring policy and optionally starts watching
// the file for changes.
func (s *service) initPolicy() error {
	var (
		policy *scoring.ScoringPolicy
		err    error
	)

	if s.config.PolicyPath != "" {
		policy, err = scoring.LoadPolicy(s.config.PolicyPath)
		if err != nil {
			return fmt.Errorf("load policy %s: %w", s.config.PolicyPath, err)
		}
		slog.Info("Loaded scoring policy", "path", s.config.PolicyPath)
	} else {
		policy, err = scoring.DefaultPolicy()
		if err != nil {
			return fmt.Errorf("compile default policy: %w", err)
		}
		slog.Info("Using built-in default scoring policy")
	}

	s.store = scoring.NewPolicyStore(policy)

	if s.config.PolicyPath != "" && s.config.PolicyWatch {
		watcher, err := scoring.NewPolicyWatcher(s.config.PolicyPath, s.store, s.onPolicyReload)
		if err != nil {
			// Hot reload is a convenience. A watcher failure should not
			// keep the service from starting with the loaded policy.
			slog.Warn("Policy watcher unavailable, hot reload disabled",
				"path", s.config.PolicyPath, "error", err)
			return nil
		}
		s.watcher = watcher
	}

	return nil
}

// onPolicyReload records the outcome of a hot reload attempt.
func (s *service) onPolicyReload(ok bool) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordPolicyReload(ok)
	}

	eventType, outcome := "policy.reloaded", "success"
	if !ok {
		eventType, outcome = "policy.rejected", "error"
	}
	s.opts.AuditLogger.Log(context.Background(), extensions.AuditEvent{
		EventType:    eventType,
		UserID:       "system",
		ResourceType: "policy",
		ResourceID:   s.config.PolicyPath,
		Outcome:      outcome,
	})
}

// initCollector resolves GitHub credentials and builds the signal
// collector with a per-repository rate limiter.
func (s *service) initCollector() error {
	tokenSource, err := collector.ResolveTokenSource(s.config.App, s.config.StaticToken)
	if err != nil {
		return fmt.Errorf("resolve github credentials: %w", err)
	}

	col, err := collector.New(collector.Options{
		TokenSource: tokenSource,
		BaseURL:     s.config.GitHubBaseURL,
		Limiter:     collector.NewLimiter(s.config.UpstreamRPS, s.config.UpstreamBurst),
	})
	if err != nil {
		return fmt.Errorf("build collector: %w", err)
	}

	s.collector = col
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware("riskradar"))

	routes.SetupRoutes(s.router, s.collector, s.store, s.opts, s.config.Version)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			slog.Warn("Policy watcher stop error", "error", err)
		}
	}

	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			slog.Warn("Telemetry shutdown error", "error", err)
		}
	}

	// Wipe any GitHub credentials still held in locked memory.
	collector.PurgeSecrets()
}

// =============================================================================
// Environment Helpers
// =============================================================================

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Ignoring malformed integer environment variable", "key", key, "value", raw)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("Ignoring malformed boolean environment variable", "key", key, "value", raw)
		return fallback
	}
	return b
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
