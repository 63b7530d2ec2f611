// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styles for the line-mode commands, drawn from the
// TUI palette so both surfaces look alike.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/personachat/internal/quota"
	"github.com/jeranaias/personachat/internal/ui/styles"
)

// init configures lipgloss for the terminal we are writing to.
// USABILITY: respects NO_COLOR, FORCE_COLOR and TTY detection
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Purple)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(16)

	// ValueStyle is used for regular values and text
	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	// UserPromptStyle is the REPL prompt prefix
	UserPromptStyle = lipgloss.NewStyle().
			Foreground(styles.UserBubbleBorder).
			Bold(true)

	// SuccessStyle is used for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	// ErrorStyle is used for error messages and failed replies
	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	// WarningStyle is used for warnings and quota notices
	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// SeparatorStyle is used for visual separators
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(styles.Overlay)
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule of the given width.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 60
	}
	return SeparatorStyle.Render(strings.Repeat("─", width))
}

// RenderLabel renders a label with consistent width.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// RenderPersonaName renders a persona's display name in its accent color.
func RenderPersonaName(key, name string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.PersonaAccent(key)).
		Render(name)
}

// RenderQuota renders a quota string colored by level.
func RenderQuota(text string, level quota.Level) string {
	switch level {
	case quota.LevelExhausted, quota.LevelCritical:
		return ErrorStyle.Render(text)
	case quota.LevelLow:
		return WarningStyle.Render(text)
	case quota.LevelNormal:
		return SuccessStyle.Render(text)
	default:
		return DimStyle.Render(text)
	}
}
