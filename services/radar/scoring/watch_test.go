// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scoring

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func writeTempPolicy(t *testing.T, dir, doc string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}
	return path
}

// waitForBaseScore polls the store until the active policy carries the
// expected base score or the deadline passes.
func waitForBaseScore(t *testing.T, store *PolicyStore, expected int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if store.Current().BaseScore == expected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Store never picked up base score %d (still %d)",
		expected, store.Current().BaseScore)
}

func TestPolicyWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	doc := string(DefaultPolicyYAML())
	path := writeTempPolicy(t, dir, doc)

	initial, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	store := NewPolicyStore(initial)

	watcher, err := NewPolicyWatcher(path, store, nil)
	if err != nil {
		t.Fatalf("NewPolicyWatcher failed: %v", err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Start(ctx)

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)

	updated := strings.Replace(doc, "base_score: 100", "base_score: 90", 1)
	if updated == doc {
		t.Fatal("Document mutation failed; test is broken")
	}
	writeTempPolicy(t, dir, updated)

	waitForBaseScore(t, store, 90)
}

func TestPolicyWatcher_HandleEvent_BadPolicyKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPolicy(t, dir, string(DefaultPolicyYAML()))

	initial, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	store := NewPolicyStore(initial)

	var outcomes []bool
	watcher, err := NewPolicyWatcher(path, store, func(ok bool) {
		outcomes = append(outcomes, ok)
	})
	if err != nil {
		t.Fatalf("NewPolicyWatcher failed: %v", err)
	}
	defer watcher.Stop()

	// Corrupt the file, then drive the event directly so the test
	// does not depend on filesystem notification timing.
	writeTempPolicy(t, dir, "version: [broken")
	watcher.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	if store.Current() != initial {
		t.Error("A failed reload replaced the active policy")
	}
	if len(outcomes) != 1 || outcomes[0] != false {
		t.Errorf("Expected one failed reload callback, got %v", outcomes)
	}
}

func TestPolicyWatcher_HandleEvent_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPolicy(t, dir, string(DefaultPolicyYAML()))

	initial, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	store := NewPolicyStore(initial)

	called := 0
	watcher, err := NewPolicyWatcher(path, store, func(bool) { called++ })
	if err != nil {
		t.Fatalf("NewPolicyWatcher failed: %v", err)
	}
	defer watcher.Stop()

	watcher.handleEvent(fsnotify.Event{
		Name: filepath.Join(dir, "unrelated.yaml"),
		Op:   fsnotify.Write,
	})
	watcher.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Chmod})

	if called != 0 {
		t.Errorf("Expected no reload attempts, got %d", called)
	}
}

func TestPolicyWatcher_HandleEvent_RenameTriggersReload(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPolicy(t, dir, string(DefaultPolicyYAML()))

	initial, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	store := NewPolicyStore(initial)

	watcher, err := NewPolicyWatcher(path, store, nil)
	if err != nil {
		t.Fatalf("NewPolicyWatcher failed: %v", err)
	}
	defer watcher.Stop()

	updated := strings.Replace(string(DefaultPolicyYAML()), "base_score: 100", "base_score: 80", 1)
	writeTempPolicy(t, dir, updated)
	watcher.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Rename})

	if store.Current().BaseScore != 80 {
		t.Errorf("Rename event did not reload the policy, base score is %d",
			store.Current().BaseScore)
	}
}
