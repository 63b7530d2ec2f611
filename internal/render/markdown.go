// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns persona replies into terminal output.
//
// Replies are markdown. When rendering is enabled they go through glamour;
// otherwise, or when glamour fails, the text is returned unchanged.
package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// DefaultWidth is the word-wrap width used before the terminal size is known.
const DefaultWidth = 80

// Theme names accepted by NewMarkdown. "plain" renders structure without color.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemeAuto  = "auto"
	ThemePlain = "plain"
)

// Markdown renders markdown for the terminal. Safe for concurrent use.
type Markdown struct {
	mu       sync.RWMutex
	theme    string
	width    int
	enabled  bool
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer. A non-positive width uses DefaultWidth.
func NewMarkdown(theme string, width int, enabled bool) *Markdown {
	m := &Markdown{theme: theme, enabled: enabled}
	m.SetWidth(width)
	return m
}

// SetWidth rebuilds the renderer for a new wrap width.
func (m *Markdown) SetWidth(width int) {
	if width <= 0 {
		width = DefaultWidth
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renderer != nil && m.width == width {
		return
	}
	m.width = width
	m.renderer = build(m.theme, width)
}

// SetEnabled turns rendering on or off.
func (m *Markdown) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// Enabled reports whether rendering is on.
func (m *Markdown) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Render returns content rendered for the terminal, or content itself
// when rendering is off or fails.
func (m *Markdown) Render(content string) string {
	m.mu.RLock()
	r, enabled := m.renderer, m.enabled
	m.mu.RUnlock()

	if !enabled || r == nil || strings.TrimSpace(content) == "" {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func build(theme string, width int) *glamour.TermRenderer {
	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	}
	switch theme {
	case ThemeDark, ThemeLight:
		opts = append(opts, glamour.WithStandardStyle(theme))
	case ThemePlain:
		opts = append(opts, glamour.WithStandardStyle("notty"))
	default:
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}
	return r
}
