// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"testing"
)

func TestMarkdown_DisabledPassesThrough(t *testing.T) {
	m := NewMarkdown(ThemePlain, 40, false)
	in := "**hello** _there_"
	if got := m.Render(in); got != in {
		t.Errorf("Render() = %q, want unchanged", got)
	}
}

func TestMarkdown_PlainRendersStructure(t *testing.T) {
	m := NewMarkdown(ThemePlain, 60, true)
	got := m.Render("# Namaste\n\nHow was your day?")
	if !strings.Contains(got, "Namaste") || !strings.Contains(got, "How was your day?") {
		t.Errorf("Render() lost text: %q", got)
	}
	if strings.HasPrefix(got, "\n") || strings.HasSuffix(got, "\n") {
		t.Error("surrounding newlines should be trimmed")
	}
}

func TestMarkdown_EmptyContent(t *testing.T) {
	m := NewMarkdown(ThemePlain, 60, true)
	if got := m.Render("  "); got != "  " {
		t.Errorf("Render(blank) = %q", got)
	}
}

func TestMarkdown_Toggle(t *testing.T) {
	m := NewMarkdown(ThemeDark, 0, true)
	if !m.Enabled() {
		t.Fatal("expected enabled")
	}
	m.SetEnabled(false)
	if m.Enabled() {
		t.Error("SetEnabled(false) ignored")
	}
	m.SetWidth(100)
	if m.width != 100 {
		t.Errorf("width = %d", m.width)
	}
}
