// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package diffscan extracts scoring signals from unified diff text.
//
// All functions are pure and total: malformed or truncated diffs
// degrade to zero findings, never to an error. The scoring contract
// requires that a rule fed garbage input simply finds nothing.
package diffscan

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// workflowPrefix is where GitHub evaluates workflow definitions.
const workflowPrefix = ".github/workflows/"

var (
	// usesRe captures the reference of a workflow `uses:` step.
	// Quotes and trailing comments are excluded from the capture.
	usesRe = regexp.MustCompile(`(?i)\buses:\s*["']?([^\s"'#]+)`)

	// fullShaRe matches a complete 40-hex commit pin.
	fullShaRe = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

	// digestRe matches a container image digest pin.
	digestRe = regexp.MustCompile(`^sha256:[0-9a-fA-F]{64}$`)
)

// AddedLines returns every added line in the diff, with the leading
// "+" stripped, grouped by file in path order. File header lines
// ("+++ b/...") are excluded.
func AddedLines(diffText string) []string {
	byFile := AddedLinesByFile(diffText)
	var lines []string
	for _, path := range sortedPaths(byFile) {
		lines = append(lines, byFile[path]...)
	}
	return lines
}

// sortedPaths returns the map keys in lexical order so callers see a
// stable line ordering regardless of parse internals.
func sortedPaths(byFile map[string][]string) []string {
	paths := make([]string, 0, len(byFile))
	for path := range byFile {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// AddedLinesByFile returns added lines grouped by new-side file path.
//
// The diff is parsed with go-diff; input that fails to parse falls
// back to a plain line scan keyed by "+++ b/" headers, and input with
// no recognizable headers lands under the empty path. Deleted files
// (new side /dev/null) are omitted.
func AddedLinesByFile(diffText string) map[string][]string {
	if strings.TrimSpace(diffText) == "" {
		return map[string][]string{}
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(diffText)).ReadAllFiles()
	if err != nil || len(fileDiffs) == 0 {
		return rawAddedLines(diffText)
	}

	result := make(map[string][]string, len(fileDiffs))
	for _, fd := range fileDiffs {
		path := normalizePath(fd.NewName)
		if path == "" {
			continue
		}
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
					result[path] = append(result[path], strings.TrimPrefix(line, "+"))
				}
			}
		}
	}
	return result
}

// rawAddedLines is the fallback scanner for diffs go-diff rejects.
func rawAddedLines(diffText string) map[string][]string {
	result := make(map[string][]string)
	current := ""
	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "+++") {
			current = normalizePath(strings.TrimSpace(strings.TrimPrefix(line, "+++")))
			continue
		}
		if strings.HasPrefix(line, "+") {
			result[current] = append(result[current], strings.TrimPrefix(line, "+"))
		}
	}
	return result
}

// normalizePath strips the diff-side prefix from a file name and maps
// /dev/null (deleted new side) to the empty string.
func normalizePath(name string) string {
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	if name == "/dev/null" {
		return ""
	}
	return name
}

// IsWorkflowPath reports whether path is a CI workflow definition.
func IsWorkflowPath(path string) bool {
	return strings.HasPrefix(path, workflowPrefix)
}

// WorkflowFiles filters paths down to CI workflow definitions,
// preserving input order.
func WorkflowFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if IsWorkflowPath(p) {
			out = append(out, p)
		}
	}
	return out
}

// UnpinnedUses returns the `uses:` references among the given added
// workflow lines that are not pinned to an immutable identifier.
// Duplicate references are reported once, in first-seen order.
func UnpinnedUses(addedLines []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range addedLines {
		m := usesRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ref := m[1]
		if IsPinned(ref) || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// IsPinned reports whether a workflow `uses:` reference is immutable.
//
// Pinned forms:
//   - owner/repo@<40-hex SHA>
//   - docker://image@sha256:<digest>
//   - ./local/path (no remote content to pin)
func IsPinned(ref string) bool {
	if strings.HasPrefix(ref, "./") {
		return true
	}
	at := strings.LastIndex(ref, "@")
	if at < 0 || at == len(ref)-1 {
		return false
	}
	pin := ref[at+1:]
	if strings.HasPrefix(ref, "docker://") {
		return digestRe.MatchString(pin)
	}
	return fullShaRe.MatchString(pin)
}

// UnpinnedUsesInDiff extracts unpinned action references from a full
// diff, restricted to added lines in workflow files. This is the
// composition collectors use to populate the unpinned-uses signal.
func UnpinnedUsesInDiff(diffText string) []string {
	byFile := AddedLinesByFile(diffText)
	var workflowLines []string
	for _, path := range sortedPaths(byFile) {
		if IsWorkflowPath(path) {
			workflowLines = append(workflowLines, byFile[path]...)
		}
	}
	return UnpinnedUses(workflowLines)
}
