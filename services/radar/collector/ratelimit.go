// Copyright (C) 2025 RiskRadar HQ (eng@riskradarhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package collector

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterEntry pairs a token bucket with its last use for pruning.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter throttles outbound API calls per repository so one noisy
// repo cannot burn the shared upstream quota.
//
// Entries idle past the TTL are pruned lazily on access, at most once
// a minute.
type Limiter struct {
	mu         sync.Mutex
	limiters   map[string]*limiterEntry
	rps        rate.Limit
	burst      int
	ttl        time.Duration
	lastPruned time.Time
}

// NewLimiter creates a per-key limiter allowing rps sustained requests
// with the given burst.
func NewLimiter(rps int, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      30 * time.Minute,
	}
}

// Get returns the token bucket for a key, creating it on first use.
func (l *Limiter) Get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.pruneLocked(now)

	if entry, ok := l.limiters[key]; ok {
		entry.lastUsed = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(l.rps, l.burst)
	l.limiters[key] = &limiterEntry{
		limiter:  limiter,
		lastUsed: now,
	}
	return limiter
}

// Wait blocks until the key's bucket permits one request or the
// context is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.Get(key).Wait(ctx)
}

func (l *Limiter) pruneLocked(now time.Time) {
	if !l.lastPruned.IsZero() && now.Sub(l.lastPruned) < time.Minute {
		return
	}

	for key, entry := range l.limiters {
		if now.Sub(entry.lastUsed) > l.ttl {
			delete(l.limiters, key)
		}
	}
	l.lastPruned = now
}
