// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package quota tracks the daily message allowance reported by the backend.
//
// The client never computes the quota. It stores whatever the backend last
// said (stats endpoint, completion events, 429 responses) and derives the
// display level and whether input should stay enabled.
package quota

import (
	"fmt"
	"sync"
	"time"
)

// DefaultDailyLimit is assumed until the backend reports its own limit.
const DefaultDailyLimit = 50

// Display thresholds.
const (
	LowThreshold      = 15
	CriticalThreshold = 5
	WarnThreshold     = 2
)

// Level is the display severity of the remaining quota.
type Level int

const (
	LevelUnknown Level = iota
	LevelNormal
	LevelLow
	LevelCritical
	LevelExhausted
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelLow:
		return "low"
	case LevelCritical:
		return "critical"
	case LevelExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker holds the last reported quota. Safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	limit     int
	remaining int
	known     bool
	blocked   time.Time // input disabled until this instant
	now       func() time.Time
}

// NewTracker creates a tracker with the given daily limit.
// A non-positive limit falls back to DefaultDailyLimit.
func NewTracker(limit int) *Tracker {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Tracker{limit: limit, now: time.Now}
}

// SetClock replaces the time source. Used by tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// SetLimit records the backend's daily limit.
func (t *Tracker) SetLimit(limit int) {
	if limit <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limit = limit
}

// Update records a remaining count reported by the backend. It returns true
// when the user should be warned that only a few messages are left.
// A count of zero is shown as exhausted but does not lock input; only the
// backend's quota-exceeded status does (see MarkExhausted).
func (t *Tracker) Update(remaining int) (warn bool) {
	if remaining < 0 {
		remaining = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = remaining
	t.known = true
	if remaining > 0 {
		t.blocked = time.Time{}
	}
	return remaining > 0 && remaining <= WarnThreshold
}

// MarkExhausted records a quota-exceeded signal. Input stays disabled
// until the next local calendar day.
func (t *Tracker) MarkExhausted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = 0
	t.known = true
	t.blocked = NextReset(t.now())
}

// CanSend reports whether input should be enabled.
func (t *Tracker) CanSend() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blocked.IsZero() || !t.now().Before(t.blocked)
}

// ExhaustedUntil returns when input unlocks again, or zero if it is not locked.
func (t *Tracker) ExhaustedUntil() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.blocked.IsZero() || !t.now().Before(t.blocked) {
		return time.Time{}
	}
	return t.blocked
}

// Remaining returns the last reported count and whether one was reported.
func (t *Tracker) Remaining() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.remaining, t.known
}

// Limit returns the daily limit.
func (t *Tracker) Limit() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.limit
}

// Level returns the display severity.
func (t *Tracker) Level() Level {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case !t.blocked.IsZero() && t.now().Before(t.blocked):
		return LevelExhausted
	case !t.known:
		return LevelUnknown
	case t.remaining == 0:
		return LevelExhausted
	case t.remaining <= CriticalThreshold:
		return LevelCritical
	case t.remaining <= LowThreshold:
		return LevelLow
	default:
		return LevelNormal
	}
}

// Reset forgets the reported quota, e.g. when the user changes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = 0
	t.known = false
	t.blocked = time.Time{}
}

// String renders "N/L messages left".
func (t *Tracker) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.known {
		return fmt.Sprintf("?/%d messages left", t.limit)
	}
	return fmt.Sprintf("%d/%d messages left", t.remaining, t.limit)
}

// WarningText is the toast shown when Update reports a warning.
func WarningText(remaining int) string {
	return fmt.Sprintf("Only %d messages left today!", remaining)
}

// NextReset returns local midnight after now.
func NextReset(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
