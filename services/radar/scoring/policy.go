// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scoring turns pull request signals into a risk report.
//
// The package has two halves: a policy layer (thresholds, weights,
// secret signatures, grade boundaries, all loaded from YAML) and a
// pure evaluation engine that applies the policy to a single set of
// signals. Policies are immutable once parsed; hot reload swaps the
// whole policy atomically through a PolicyStore.
package scoring

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Score scale bounds. Reports never leave this range.
const (
	MinScore = 0
	MaxScore = 100
)

// defaultPolicyYAML holds the raw byte content of the shipped policy.
//
// The file is baked into the binary at compile time so a deployment
// with no RADAR_POLICY_PATH still scores with a complete, reviewed
// rule set. Overrides replace the whole document, never merge into it.
//
//go:embed default_policy.yaml
var defaultPolicyYAML []byte

var validate = validator.New()

// ScoringPolicy is the full configuration for one scoring run.
//
// # Description
//
// Everything the engine consults lives here: the base score, the
// grade boundaries, and per-rule thresholds and deltas. Deltas are
// signed; penalties are negative numbers that are added to the base.
//
// # Thread Safety
//
// A policy is immutable after ParsePolicy returns it. Share freely.
type ScoringPolicy struct {
	// Version is the policy document version, starting at 1.
	Version int `yaml:"version" validate:"min=1"`

	// BaseScore is the starting score before any rule applies.
	BaseScore int `yaml:"base_score" validate:"min=0,max=100"`

	// Grades maps score floors to letter grades.
	Grades []GradeBoundary `yaml:"grades" validate:"required,min=1,dive"`

	// Rules carries the per-rule configuration.
	Rules RulesPolicy `yaml:"rules"`
}

// GradeBoundary assigns a letter grade to every score at or above Min.
type GradeBoundary struct {
	Grade string `yaml:"grade" validate:"required"`
	Min   int    `yaml:"min" validate:"min=0,max=100"`
}

// RulesPolicy groups the configuration of every scoring rule. The
// field order here has no significance; evaluation order is fixed by
// the engine's rule table.
type RulesPolicy struct {
	Size           TieredRule        `yaml:"size"`
	FileCount      TieredRule        `yaml:"file_count"`
	SensitivePath  SensitivePathRule `yaml:"sensitive_path"`
	SecretPattern  SecretRule        `yaml:"secret_pattern"`
	UnpinnedAction CountScaledRule   `yaml:"unpinned_action"`
	CIFailures     CountScaledRule   `yaml:"ci_failures"`
	ReviewBlocked  FlatRule          `yaml:"review_blocked"`
	NewContributor FlatRule          `yaml:"new_contributor"`
	Staleness      StalenessRule     `yaml:"staleness"`
}

// TieredRule applies the delta of the highest tier whose threshold is
// exceeded. Tiers must be listed with strictly increasing thresholds.
type TieredRule struct {
	Tiers []Tier `yaml:"tiers" validate:"required,min=1,dive"`
}

// Tier pairs a threshold with the delta applied once the measured
// value exceeds it.
type Tier struct {
	Threshold int `yaml:"threshold" validate:"min=1"`
	Delta     int `yaml:"delta" validate:"max=0"`
}

// match returns the delta of the highest tier value exceeds, and
// whether any tier matched.
func (r TieredRule) match(value int) (Tier, bool) {
	matched := false
	var best Tier
	for _, tier := range r.Tiers {
		if value > tier.Threshold {
			best = tier
			matched = true
		}
	}
	return best, matched
}

// SensitivePathRule deducts per category of sensitive path touched.
// A category triggers at most once no matter how many of its paths
// appear; distinct categories compound.
type SensitivePathRule struct {
	Categories []SensitiveCategory `yaml:"categories" validate:"dive"`
}

// SensitiveCategory names a class of blast-radius paths.
//
// Patterns are matched as case-insensitive substrings of the changed
// file path. They are normalized to lower case at parse time.
type SensitiveCategory struct {
	Name     string   `yaml:"name" validate:"required"`
	Delta    int      `yaml:"delta" validate:"max=0"`
	Patterns []string `yaml:"patterns" validate:"required,min=1"`
}

// Matches reports whether path belongs to this category.
func (c SensitiveCategory) Matches(path string) bool {
	lower := strings.ToLower(path)
	for _, pattern := range c.Patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// SecretRule configures the secret signature scan. Each signature
// family that matches anywhere in the added lines deducts
// DeltaPerMatch exactly once; families compound.
type SecretRule struct {
	DeltaPerMatch int               `yaml:"delta_per_match" validate:"max=0"`
	Signatures    []SecretSignature `yaml:"signatures" validate:"dive"`
}

// CountScaledRule deducts Delta per occurrence, floored at Cap.
type CountScaledRule struct {
	Delta int `yaml:"delta" validate:"max=0"`
	Cap   int `yaml:"cap" validate:"max=0"`
}

// apply returns the total delta for count occurrences.
func (r CountScaledRule) apply(count int) int {
	total := r.Delta * count
	if total < r.Cap {
		return r.Cap
	}
	return total
}

// FlatRule deducts a fixed delta when its condition holds.
type FlatRule struct {
	Delta int `yaml:"delta" validate:"max=0"`
}

// StalenessRule deducts once the PR has been open at least MinAgeDays.
type StalenessRule struct {
	MinAgeDays float64 `yaml:"min_age_days" validate:"min=0"`
	Delta      int     `yaml:"delta" validate:"max=0"`
}

// ParsePolicy decodes, validates, and compiles a policy document.
//
// Unknown YAML keys are rejected so a typoed rule name cannot
// silently disable a deduction. The returned policy has its secret
// signatures compiled and its grade boundaries sorted, ready for the
// engine.
func ParsePolicy(data []byte) (*ScoringPolicy, error) {
	var policy ScoringPolicy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&policy); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal the policy document: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Compile(); err != nil {
		return nil, err
	}
	policy.sortGrades()
	return &policy, nil
}

// LoadPolicy reads and parses a policy file from disk.
func LoadPolicy(path string) (*ScoringPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// DefaultPolicy parses the embedded policy document.
func DefaultPolicy() (*ScoringPolicy, error) {
	return ParsePolicy(defaultPolicyYAML)
}

// DefaultPolicyYAML returns a copy of the embedded policy document,
// for operators who want a starting point to customize.
func DefaultPolicyYAML() []byte {
	out := make([]byte, len(defaultPolicyYAML))
	copy(out, defaultPolicyYAML)
	return out
}

// Validate checks structural and semantic constraints.
//
// Beyond the struct tags this enforces:
//   - grade boundaries are unique, cover score 0, and are monotonic
//   - tier thresholds strictly increase and deltas never shrink
//   - count-scaled caps are at least as severe as one occurrence
//   - sensitive categories have unique names
func (p *ScoringPolicy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("policy failed validation: %w", err)
	}

	if err := validateGrades(p.Grades); err != nil {
		return err
	}
	if err := validateTiers("size", p.Rules.Size); err != nil {
		return err
	}
	if err := validateTiers("file_count", p.Rules.FileCount); err != nil {
		return err
	}
	if err := validateCap("unpinned_action", p.Rules.UnpinnedAction); err != nil {
		return err
	}
	if err := validateCap("ci_failures", p.Rules.CIFailures); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, cat := range p.Rules.SensitivePath.Categories {
		if seen[cat.Name] {
			return fmt.Errorf("sensitive_path category %q is defined twice", cat.Name)
		}
		seen[cat.Name] = true
	}

	seenSig := make(map[string]bool)
	for _, sig := range p.Rules.SecretPattern.Signatures {
		if seenSig[sig.ID] {
			return fmt.Errorf("secret signature %q is defined twice", sig.ID)
		}
		seenSig[sig.ID] = true
	}

	return nil
}

func validateGrades(grades []GradeBoundary) error {
	seenGrade := make(map[string]bool)
	seenMin := make(map[int]bool)
	coversZero := false
	for _, g := range grades {
		if seenGrade[g.Grade] {
			return fmt.Errorf("grade %q is defined twice", g.Grade)
		}
		if seenMin[g.Min] {
			return fmt.Errorf("two grades share the floor %d", g.Min)
		}
		seenGrade[g.Grade] = true
		seenMin[g.Min] = true
		if g.Min == 0 {
			coversZero = true
		}
	}
	if !coversZero {
		return errors.New("grade boundaries must include a floor of 0 so every score maps to a grade")
	}
	return nil
}

func validateTiers(rule string, r TieredRule) error {
	for i := 1; i < len(r.Tiers); i++ {
		prev, cur := r.Tiers[i-1], r.Tiers[i]
		if cur.Threshold <= prev.Threshold {
			return fmt.Errorf("%s tiers must have strictly increasing thresholds (%d then %d)",
				rule, prev.Threshold, cur.Threshold)
		}
		if cur.Delta > prev.Delta {
			return fmt.Errorf("%s tier at threshold %d is milder than the tier below it",
				rule, cur.Threshold)
		}
	}
	return nil
}

func validateCap(rule string, r CountScaledRule) error {
	if r.Cap > r.Delta {
		return fmt.Errorf("%s cap %d is milder than a single occurrence delta %d", rule, r.Cap, r.Delta)
	}
	return nil
}

// Compile prepares the policy for evaluation: secret signature
// regexes are compiled and category patterns are lower-cased.
func (p *ScoringPolicy) Compile() error {
	for i := range p.Rules.SecretPattern.Signatures {
		if err := p.Rules.SecretPattern.Signatures[i].compile(); err != nil {
			return fmt.Errorf("failed to compile secret signature %q: %w",
				p.Rules.SecretPattern.Signatures[i].ID, err)
		}
	}
	for i := range p.Rules.SensitivePath.Categories {
		cat := &p.Rules.SensitivePath.Categories[i]
		for j, pattern := range cat.Patterns {
			cat.Patterns[j] = strings.ToLower(pattern)
		}
	}
	return nil
}

// sortGrades orders boundaries from highest floor to lowest so
// GradeFor can take the first match.
func (p *ScoringPolicy) sortGrades() {
	sort.Slice(p.Grades, func(i, j int) bool {
		return p.Grades[i].Min > p.Grades[j].Min
	})
}

// GradeFor maps a clamped score to its letter grade.
func (p *ScoringPolicy) GradeFor(score int) string {
	for _, g := range p.Grades {
		if score >= g.Min {
			return g.Grade
		}
	}
	// Unreachable for validated policies; validation requires a
	// floor of 0.
	return p.Grades[len(p.Grades)-1].Grade
}

// FloorFor returns the minimum score that earns the given grade, and
// whether the grade exists in this policy. Grade names are matched
// case-insensitively so CLI input like "b" finds "B".
func (p *ScoringPolicy) FloorFor(grade string) (int, bool) {
	for _, g := range p.Grades {
		if strings.EqualFold(g.Grade, grade) {
			return g.Min, true
		}
	}
	return 0, false
}

// PolicyStore hands out the current policy and accepts replacements.
//
// # Thread Safety
//
// Safe for concurrent use. Readers get a consistent snapshot; the
// watcher swaps in reloaded policies without blocking scoring.
type PolicyStore struct {
	mu       sync.RWMutex
	policy   *ScoringPolicy
	loadedAt time.Time
}

// NewPolicyStore creates a store seeded with the given policy.
func NewPolicyStore(policy *ScoringPolicy) *PolicyStore {
	return &PolicyStore{
		policy:   policy,
		loadedAt: time.Now(),
	}
}

// Current returns the active policy. The returned value must be
// treated as read-only.
func (s *PolicyStore) Current() *ScoringPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Replace swaps in a new policy atomically.
func (s *PolicyStore) Replace(policy *ScoringPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = policy
	s.loadedAt = time.Now()
}

// LoadedAt reports when the active policy was installed.
func (s *PolicyStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
