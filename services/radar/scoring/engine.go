// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scoring

import (
	"github.com/riskradarhq/riskradar/services/radar/datatypes"
)

// Score evaluates every rule against the signals and produces the
// final report.
//
// # Description
//
// The total is base score plus each rule's delta in table order,
// clamped to [MinScore, MaxScore], then mapped to a grade. Every rule
// always contributes a RuleResult, triggered or not, so the report is
// self-explaining: the sum of deltas plus the base always reproduces
// the pre-clamp total.
//
// # Inputs
//
//   - policy: A parsed, compiled policy. Must come from ParsePolicy,
//     LoadPolicy, or DefaultPolicy.
//   - signals: The collected signals. Zero values are data gaps and
//     skip their rules; Score never fails.
//
// # Outputs
//
//   - datatypes.ScanReport: Deterministic for identical inputs.
//
// # Thread Safety
//
// Pure function. Safe for concurrent use with a shared policy.
func Score(policy *ScoringPolicy, signals datatypes.PRSignals) datatypes.ScanReport {
	ec := newEvalContext(signals)

	results := make([]datatypes.RuleResult, 0, len(ruleTable))
	score := policy.BaseScore
	for _, entry := range ruleTable {
		result := entry.eval(policy, ec)
		result.RuleID = entry.id
		results = append(results, result)
		score += result.Delta
	}

	score = clampScore(score)
	return datatypes.ScanReport{
		TotalScore:  score,
		Grade:       policy.GradeFor(score),
		RuleResults: results,
	}
}

func clampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
