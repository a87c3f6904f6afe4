// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scoring

import (
	"fmt"
	"strings"

	"github.com/riskradarhq/riskradar/services/radar/datatypes"
	"github.com/riskradarhq/riskradar/services/radar/diffscan"
)

// Stable rule identifiers, in report order.
const (
	RuleSize           = "size"
	RuleFileCount      = "file_count"
	RuleSensitivePath  = "sensitive_path"
	RuleSecretPattern  = "secret_pattern"
	RuleUnpinnedAction = "unpinned_action"
	RuleCIFailures     = "ci_failures"
	RuleReviewBlocked  = "review_blocked"
	RuleNewContributor = "new_contributor"
	RuleStaleness      = "staleness"
)

// ruleEvaluator computes one rule's result. Implementations never
// fail: missing inputs produce an untriggered result with a zero
// delta and a reason explaining the gap.
type ruleEvaluator func(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult

type ruleEntry struct {
	id   string
	eval ruleEvaluator
}

// ruleTable fixes both the evaluation order and the order of
// RuleResults in every report. Deltas are applied to the base score
// in exactly this sequence before clamping, so reordering entries
// changes nothing about the total but everything about diffability
// of stored reports.
var ruleTable = []ruleEntry{
	{RuleSize, evalSize},
	{RuleFileCount, evalFileCount},
	{RuleSensitivePath, evalSensitivePath},
	{RuleSecretPattern, evalSecretPattern},
	{RuleUnpinnedAction, evalUnpinnedAction},
	{RuleCIFailures, evalCIFailures},
	{RuleReviewBlocked, evalReviewBlocked},
	{RuleNewContributor, evalNewContributor},
	{RuleStaleness, evalStaleness},
}

// RuleIDs returns the rule identifiers in report order.
func RuleIDs() []string {
	ids := make([]string, 0, len(ruleTable))
	for _, entry := range ruleTable {
		ids = append(ids, entry.id)
	}
	return ids
}

// evalContext carries the signals plus inputs derived from them once
// per scan, so no rule re-parses the diff.
type evalContext struct {
	signals    datatypes.PRSignals
	addedLines []string
}

func newEvalContext(signals datatypes.PRSignals) *evalContext {
	ec := &evalContext{signals: signals}
	if signals.DiffText != "" {
		ec.addedLines = diffscan.AddedLines(signals.DiffText)
	}
	return ec
}

func notTriggered(reason string) datatypes.RuleResult {
	return datatypes.RuleResult{Triggered: false, Delta: 0, Reason: reason}
}

func triggered(delta int, reason string) datatypes.RuleResult {
	return datatypes.RuleResult{Triggered: true, Delta: delta, Reason: reason}
}

func evalSize(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult {
	volume := ec.signals.TotalChangeVolume()
	tier, ok := p.Rules.Size.match(volume)
	if !ok {
		return notTriggered(fmt.Sprintf("%d changed lines is within the size budget", volume))
	}
	return triggered(tier.Delta,
		fmt.Sprintf("%d changed lines exceeds the %d line threshold", volume, tier.Threshold))
}

func evalFileCount(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult {
	count := ec.signals.ChangedFilesCount
	tier, ok := p.Rules.FileCount.match(count)
	if !ok {
		return notTriggered(fmt.Sprintf("%d changed files is within the file budget", count))
	}
	return triggered(tier.Delta,
		fmt.Sprintf("%d changed files exceeds the %d file threshold", count, tier.Threshold))
}

func evalSensitivePath(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult {
	paths := ec.signals.ChangedFilePaths
	if len(paths) == 0 {
		return notTriggered("no changed file paths reported")
	}

	// Each category counts once no matter how many paths hit it.
	var names []string
	delta := 0
	for _, cat := range p.Rules.SensitivePath.Categories {
		for _, path := range paths {
			if cat.Matches(path) {
				names = append(names, cat.Name)
				delta += cat.Delta
				break
			}
		}
	}

	if len(names) == 0 {
		return notTriggered("no sensitive paths touched")
	}
	return triggered(delta, "touches sensitive paths: "+strings.Join(names, ", "))
}

func evalSecretPattern(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult {
	if ec.signals.DiffText == "" {
		return notTriggered("no diff content available")
	}

	// Each signature family counts once per scan; the first matching
	// added line supplies the masked sample for the reason.
	var found []string
	for i := range p.Rules.SecretPattern.Signatures {
		sig := &p.Rules.SecretPattern.Signatures[i]
		for _, line := range ec.addedLines {
			if match, ok := sig.FindFirst(line); ok {
				found = append(found, fmt.Sprintf("%s (%s)", sig.ID, maskValue(match)))
				break
			}
		}
	}

	if len(found) == 0 {
		return notTriggered("no secret patterns matched added lines")
	}
	delta := p.Rules.SecretPattern.DeltaPerMatch * len(found)
	return triggered(delta, "matched secret signatures: "+strings.Join(found, "; "))
}

func evalUnpinnedAction(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult {
	uses := ec.signals.UnpinnedActionUses
	if len(uses) == 0 {
		if len(ec.signals.WorkflowFilesTouched) == 0 {
			return notTriggered("no workflow changes detected")
		}
		return notTriggered("all added workflow action references are pinned")
	}

	rule := p.Rules.UnpinnedAction
	delta := rule.apply(len(uses))
	reason := fmt.Sprintf("%d unpinned action reference(s): %s", len(uses), strings.Join(uses, ", "))
	if delta == rule.Cap && rule.Delta*len(uses) < rule.Cap {
		reason += " (deduction capped)"
	}
	return triggered(delta, reason)
}

func evalCIFailures(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult {
	count := ec.signals.FailingChecks
	if count == 0 {
		return notTriggered("no failing check runs on the head commit")
	}

	rule := p.Rules.CIFailures
	delta := rule.apply(count)
	reason := fmt.Sprintf("%d failing check run(s) on the head commit", count)
	if delta == rule.Cap && rule.Delta*count < rule.Cap {
		reason += " (deduction capped)"
	}
	return triggered(delta, reason)
}

func evalReviewBlocked(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult {
	if !ec.signals.ChangesRequested {
		return notTriggered("no reviewer has requested changes")
	}
	return triggered(p.Rules.ReviewBlocked.Delta, "a reviewer has requested changes")
}

func evalNewContributor(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult {
	assoc := ec.signals.AuthorAssociation
	if !assoc.Known() {
		return notTriggered("author association unavailable")
	}
	if !assoc.IsNewContributor() {
		return notTriggered(fmt.Sprintf("author association %s is established", assoc))
	}
	return triggered(p.Rules.NewContributor.Delta,
		fmt.Sprintf("author association %s marks a first-time contributor", assoc))
}

func evalStaleness(p *ScoringPolicy, ec *evalContext) datatypes.RuleResult {
	age := ec.signals.AgeDays
	rule := p.Rules.Staleness
	if age < rule.MinAgeDays {
		return notTriggered(fmt.Sprintf("open for %.1f days", age))
	}
	return triggered(rule.Delta,
		fmt.Sprintf("open for %.1f days, at or beyond the %.0f day staleness threshold",
			age, rule.MinAgeDays))
}
