// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package quota

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTracker_Levels(t *testing.T) {
	tr := NewTracker(0)
	if tr.Limit() != DefaultDailyLimit {
		t.Fatalf("Limit() = %d, want %d", tr.Limit(), DefaultDailyLimit)
	}
	if tr.Level() != LevelUnknown {
		t.Errorf("initial level = %v", tr.Level())
	}

	tests := []struct {
		remaining int
		want      Level
	}{
		{50, LevelNormal},
		{16, LevelNormal},
		{15, LevelLow},
		{6, LevelLow},
		{5, LevelCritical},
		{1, LevelCritical},
		{0, LevelExhausted},
	}
	for _, tt := range tests {
		tr.Update(tt.remaining)
		if got := tr.Level(); got != tt.want {
			t.Errorf("Update(%d): Level() = %v, want %v", tt.remaining, got, tt.want)
		}
	}
}

func TestTracker_Warn(t *testing.T) {
	tr := NewTracker(50)
	for remaining, want := range map[int]bool{10: false, 3: false, 2: true, 1: true, 0: false} {
		if got := tr.Update(remaining); got != want {
			t.Errorf("Update(%d) warn = %v, want %v", remaining, got, want)
		}
	}
	if WarningText(2) != "Only 2 messages left today!" {
		t.Errorf("WarningText = %q", WarningText(2))
	}
}

func TestTracker_ExhaustedUntilMidnight(t *testing.T) {
	now := time.Date(2025, 3, 14, 22, 30, 0, 0, time.Local)
	tr := NewTracker(50)
	tr.SetClock(fixedClock(now))

	tr.MarkExhausted()
	if tr.CanSend() {
		t.Fatal("CanSend() should be false after MarkExhausted")
	}
	want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.Local)
	if got := tr.ExhaustedUntil(); !got.Equal(want) {
		t.Errorf("ExhaustedUntil() = %v, want %v", got, want)
	}

	tr.SetClock(fixedClock(want.Add(time.Second)))
	if !tr.CanSend() {
		t.Error("CanSend() should be true after the reset")
	}
	if !tr.ExhaustedUntil().IsZero() {
		t.Error("ExhaustedUntil() should be zero after the reset")
	}
}

func TestTracker_UpdateClearsBlock(t *testing.T) {
	tr := NewTracker(50)
	tr.MarkExhausted()
	tr.Update(50)
	if !tr.CanSend() {
		t.Error("a positive remaining count from the backend should re-enable input")
	}
}

func TestTracker_ZeroRemainingDoesNotLock(t *testing.T) {
	tr := NewTracker(50)
	tr.Update(0)
	if !tr.CanSend() {
		t.Error("only a quota-exceeded status from the backend should lock input")
	}
	if !tr.ExhaustedUntil().IsZero() {
		t.Error("ExhaustedUntil() should be zero without MarkExhausted")
	}
	if tr.Level() != LevelExhausted {
		t.Errorf("Level() = %v, want %v", tr.Level(), LevelExhausted)
	}
}

func TestTracker_String(t *testing.T) {
	tr := NewTracker(50)
	if tr.String() != "?/50 messages left" {
		t.Errorf("String() = %q", tr.String())
	}
	tr.SetLimit(40)
	tr.Update(12)
	if tr.String() != "12/40 messages left" {
		t.Errorf("String() = %q", tr.String())
	}
	tr.SetLimit(-1)
	if tr.Limit() != 40 {
		t.Error("non-positive limit should be ignored")
	}
	tr.Reset()
	if _, known := tr.Remaining(); known {
		t.Error("Reset() should forget the count")
	}
}

func TestNextReset(t *testing.T) {
	loc := time.FixedZone("X", 5*3600)
	got := NextReset(time.Date(2025, 12, 31, 0, 0, 1, 0, loc))
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextReset = %v, want %v", got, want)
	}
}
