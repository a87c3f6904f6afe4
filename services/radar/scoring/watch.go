// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scoring

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// PolicyWatcher reloads the scoring policy when its file changes.
//
// # Description
//
// Watches the directory containing the policy file (watching the
// directory instead of the file survives editors that replace the
// file on save) and swaps validated reloads into the store. A reload
// that fails to parse or validate is logged and dropped; the previous
// policy keeps serving.
//
// # Thread Safety
//
// Safe for concurrent use. Start should only be called once.
type PolicyWatcher struct {
	path     string
	store    *PolicyStore
	watcher  *fsnotify.Watcher
	onReload func(ok bool)
}

// NewPolicyWatcher creates a watcher for the given policy file.
//
// # Inputs
//
//   - path: Policy file to watch.
//   - store: Store that receives validated reloads.
//   - onReload: Optional callback after each reload attempt (metrics).
//
// # Outputs
//
//   - *PolicyWatcher: Ready-to-start watcher.
//   - error: Non-nil if the fsnotify watcher cannot be created.
func NewPolicyWatcher(path string, store *PolicyStore, onReload func(ok bool)) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &PolicyWatcher{
		path:     path,
		store:    store,
		watcher:  watcher,
		onReload: onReload,
	}, nil
}

// Start begins watching for policy changes. Blocks until the context
// is cancelled. Should be run in a goroutine.
//
// # Example
//
//	watcher, _ := scoring.NewPolicyWatcher(path, store, nil)
//	go watcher.Start(ctx)
func (w *PolicyWatcher) Start(ctx context.Context) {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		slog.Warn("Failed to watch policy directory",
			"dir", dir,
			"error", err)
		return
	}

	slog.Debug("Started watching policy file",
		"path", w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Policy watcher error",
				"error", err)

		case <-ctx.Done():
			slog.Debug("Policy watcher stopping")
			return
		}
	}
}

// handleEvent processes a single fsnotify event.
func (w *PolicyWatcher) handleEvent(event fsnotify.Event) {
	// Writes and renames both matter: editors and config rollouts
	// often write a temp file and rename it over the target.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}

	policy, err := LoadPolicy(w.path)
	if err != nil {
		slog.Error("Policy reload failed, keeping previous policy",
			"path", w.path,
			"error", err)
		if w.onReload != nil {
			w.onReload(false)
		}
		return
	}

	w.store.Replace(policy)
	slog.Info("Policy reloaded",
		"path", w.path,
		"version", policy.Version)
	if w.onReload != nil {
		w.onReload(true)
	}
}

// Stop stops the watcher and releases resources. Safe to call
// multiple times.
func (w *PolicyWatcher) Stop() error {
	return w.watcher.Close()
}
