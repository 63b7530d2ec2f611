// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/personachat/internal/quota"
)

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewTheme_ForcedBackground(t *testing.T) {
	if th := NewTheme("light"); th.IsDark || th.Name != "light" {
		t.Errorf("light theme: IsDark=%v Name=%q", th.IsDark, th.Name)
	}
	if th := NewTheme("dark"); !th.IsDark || th.Name != "dark" {
		t.Errorf("dark theme: IsDark=%v Name=%q", th.IsDark, th.Name)
	}
	if th := NewTheme("bogus"); th.Name != "auto" {
		t.Errorf("unknown theme should fall back to auto, got %q", th.Name)
	}
}

func TestThemeStylesRender(t *testing.T) {
	th := NewTheme("dark")
	for name, out := range map[string]string{
		"UserBubble":    th.UserBubble.Render("hi"),
		"PersonaBubble": th.PersonaBubble.Render("hello"),
		"StatusBar":     th.StatusBar.Render("status"),
		"Toast":         th.Toast.Render("toast"),
	} {
		if out == "" {
			t.Errorf("%s rendered empty", name)
		}
	}
}

func TestQuotaStyle(t *testing.T) {
	th := NewTheme("dark")
	levels := []quota.Level{quota.LevelUnknown, quota.LevelNormal, quota.LevelLow, quota.LevelCritical, quota.LevelExhausted}
	for _, l := range levels {
		if th.QuotaStyle(l).Render("x") == "" {
			t.Errorf("QuotaStyle(%v) rendered empty", l)
		}
	}
	if th.QuotaStyle(quota.LevelExhausted).GetBackground() != Rose {
		t.Error("exhausted quota should sit on a rose background")
	}
}

func TestCharCountStyle(t *testing.T) {
	th := NewTheme("dark")
	if th.CharCountStyle(400).GetForeground() != TextMuted {
		t.Error("400 chars should use the plain counter")
	}
	if th.CharCountStyle(401).GetForeground() != Orange {
		t.Error("401 chars should warn")
	}
	if th.CharCountStyle(451).GetForeground() != Rose {
		t.Error("451 chars should be danger")
	}
}

func TestPersonaAccent(t *testing.T) {
	if PersonaAccent("kabir") == Purple {
		t.Error("known persona should have its own accent")
	}
	if PersonaAccent("nobody") != Purple {
		t.Error("unknown persona should use Purple")
	}
}

func TestLayoutMode(t *testing.T) {
	th := NewTheme("dark")
	cases := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow}, {60, LayoutMedium}, {99, LayoutMedium}, {100, LayoutWide},
	}
	for _, c := range cases {
		th.SetSize(c.width, 24)
		if got := th.GetLayoutMode(); got != c.want {
			t.Errorf("width %d: got %v, want %v", c.width, got, c.want)
		}
	}
}

// =============================================================================
// ANIMATION TESTS
// =============================================================================

func TestSpinnerConfig(t *testing.T) {
	if TypingSpinner.Duration() != time.Second/6 {
		t.Errorf("Duration = %v", TypingSpinner.Duration())
	}
	if (SpinnerConfig{}).Duration() != time.Second {
		t.Error("zero FPS should not divide by zero")
	}
	b := HeartSpinner.Bubble()
	if len(b.Frames) != len(HeartSpinner.Frames) || b.FPS != HeartSpinner.Duration() {
		t.Error("Bubble() did not carry frames and interval")
	}
}

func TestRenderProgressBar(t *testing.T) {
	cases := []struct {
		width   int
		percent float64
		want    string
	}{
		{10, 0, "----------"},
		{10, 100, "##########"},
		{10, 50, "#####-----"},
		{10, 150, "##########"},
		{10, -5, "----------"},
		{0, 50, ""},
	}
	for _, c := range cases {
		if got := RenderProgressBar(c.width, c.percent); got != c.want {
			t.Errorf("RenderProgressBar(%d, %v) = %q, want %q", c.width, c.percent, got, c.want)
		}
	}
	if got := RenderProgressBar(10, 33); len(got) != 10 || !strings.HasPrefix(got, "###") {
		t.Errorf("partial bar = %q", got)
	}
}

func TestRenderIndicators(t *testing.T) {
	if !strings.Contains(RenderError("boom"), "[X] boom") {
		t.Error("RenderError missing indicator")
	}
	if !strings.Contains(RenderWarning("low"), "[!] low") {
		t.Error("RenderWarning missing indicator")
	}
}
