// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ratelimit implements per-client sliding-window admission control.
//
// Each client id owns an ordered list of admission timestamps. On every
// check the list is pruned to the live window; if the remaining count is at
// the limit the attempt is denied (and not recorded) together with the wait
// until the oldest admission leaves the window.
//
// State is process-local. Running multiple instances multiplies the
// effective limit; a shared store is deliberately not assumed here.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMaxPerWindow = 5
	DefaultWindow       = 60 * time.Second
)

// Decision is the outcome of an admission check. Denial is a normal
// terminal outcome, not an error: RetryAfterSec tells the client how long
// to wait before the oldest admission ages out.
type Decision struct {
	Allowed       bool
	RetryAfterSec int
}

// Limiter is a mutex-guarded map of client windows. Construct one at
// process start and inject it; there is no package-level instance.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	clients map[string][]time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Limiter. Non-positive arguments fall back to the defaults
// (5 admissions per 60s window).
func New(max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMaxPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		window:  window,
		max:     max,
		clients: make(map[string][]time.Time),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Admit checks and, when allowed, records one admission for clientID at
// the given instant. Timestamps exactly one window old are stale (strict
// comparison), so a client at the boundary is admitted.
//
// The lock is held only for the map update; callers must never invoke
// Admit while holding it across slow calls, and the limiter itself never
// does I/O.
func (l *Limiter) Admit(clientID string, now time.Time) Decision {
	if clientID == "" {
		clientID = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	live := prune(l.clients[clientID], now, l.window)

	if len(live) >= l.max {
		l.clients[clientID] = live
		wait := l.window - now.Sub(live[0])
		retry := int((wait + time.Second - 1) / time.Second)
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, RetryAfterSec: retry}
	}

	l.clients[clientID] = append(live, now)
	return Decision{Allowed: true}
}

// prune drops timestamps with now-ts >= window, keeping order.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= window {
		i++
	}
	return stamps[i:]
}

// Sweep removes client ids whose windows pruned to empty, so idle clients
// do not grow the map for the life of the process. Returns the number of
// evicted ids.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for id, stamps := range l.clients {
		live := prune(stamps, now, l.window)
		if len(live) == 0 {
			delete(l.clients, id)
			evicted++
			continue
		}
		l.clients[id] = live
	}
	return evicted
}

// StartSweeper runs Sweep at the given interval until StopSweeper is
// called. Safe to skip entirely in tests that call Sweep directly.
func (l *Limiter) StartSweeper(interval time.Duration) {
	go func() {
		defer close(l.doneCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-l.stopCh:
				return
			case <-ticker.C:
				if n := l.Sweep(time.Now()); n > 0 {
					slog.Debug("rate limiter sweep evicted idle clients", "evicted", n)
				}
			}
		}
	}()
}

// StopSweeper halts the sweeper goroutine and waits for it to exit.
func (l *Limiter) StopSweeper() {
	close(l.stopCh)
	<-l.doneCh
}

// Size reports the number of tracked client ids.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
