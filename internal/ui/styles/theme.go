// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/personachat/internal/quota"
)

// Character count thresholds for the input counter.
const (
	CharCountWarnAt   = 400
	CharCountDangerAt = 450
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	Name         string
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App       lipgloss.Style
	Container lipgloss.Style

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style
	HeaderBrand    lipgloss.Style

	// ==========================================================================
	// MESSAGE BUBBLE STYLES
	// ==========================================================================

	UserBubble    lipgloss.Style
	PersonaBubble lipgloss.Style
	SystemBubble  lipgloss.Style
	FailedBubble  lipgloss.Style
	CanceledNote  lipgloss.Style
	Timestamp     lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style
	CharCount        lipgloss.Style
	CharCountWarning lipgloss.Style
	CharCountDanger  lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar      lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style
	QuotaNormal    lipgloss.Style
	QuotaLow       lipgloss.Style
	QuotaCritical  lipgloss.Style
	QuotaExhausted lipgloss.Style
	Toast          lipgloss.Style

	// ==========================================================================
	// SPINNER AND TYPING STYLES
	// ==========================================================================

	Spinner    lipgloss.Style
	TypingText lipgloss.Style

	// ==========================================================================
	// PERSONA LIST STYLES
	// ==========================================================================

	PersonaList         lipgloss.Style
	PersonaItem         lipgloss.Style
	PersonaItemSelected lipgloss.Style
	PersonaMeta         lipgloss.Style
	PersonaPreview      lipgloss.Style

	// ==========================================================================
	// WELCOME SCREEN STYLES
	// ==========================================================================

	WelcomeBox   lipgloss.Style
	WelcomeLogo  lipgloss.Style
	WelcomeInfo  lipgloss.Style
	WelcomeError lipgloss.Style

	// ==========================================================================
	// ACCESSIBILITY: Status styles paired with StatusIndicators
	// ==========================================================================

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
}

// NewTheme creates a theme. name is "dark", "light" or "auto"; auto asks
// the terminal for its background.
func NewTheme(name string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch name {
	case "light":
		isDark = false
	case "dark":
		isDark = true
	default:
		name = "auto"
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		Name:         name,
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	// Header
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Pink).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Pink)

	// Message bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)

	t.PersonaBubble = lipgloss.NewStyle().
		Foreground(PersonaBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(PersonaBubbleBorder).
		Padding(0, 1)

	t.SystemBubble = lipgloss.NewStyle().
		Foreground(SystemBubbleFg).
		Italic(true).
		Align(lipgloss.Center)

	t.FailedBubble = lipgloss.NewStyle().
		Foreground(FailedBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)

	t.CanceledNote = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.CharCount = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.CharCountWarning = lipgloss.NewStyle().
		Foreground(Orange)

	t.CharCountDanger = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.QuotaNormal = lipgloss.NewStyle().
		Foreground(Emerald)

	t.QuotaLow = lipgloss.NewStyle().
		Foreground(Orange).
		Bold(true)

	t.QuotaCritical = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.QuotaExhausted = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Rose).
		Bold(true).
		Padding(0, 1)

	t.Toast = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Amber).
		Bold(true).
		Padding(0, 1)

	// Spinner and typing
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.TypingText = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Persona list
	t.PersonaList = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 2)

	t.PersonaItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.PersonaItemSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)

	t.PersonaMeta = lipgloss.NewStyle().
		Foreground(TextSecondary).
		PaddingLeft(5)

	t.PersonaPreview = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(5)

	// Welcome screen
	t.WelcomeBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Pink).
		Padding(1, 4).
		Align(lipgloss.Center)

	t.WelcomeLogo = lipgloss.NewStyle().
		Foreground(Pink).
		Bold(true)

	t.WelcomeInfo = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.WelcomeError = lipgloss.NewStyle().
		Foreground(Rose)

	// Accessibility
	t.SuccessStyle = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.ErrorStyle = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.WarningStyle = lipgloss.NewStyle().Foreground(Orange).Bold(true)
	t.InfoStyle = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
}

// PersonaName returns the bold accent style for a persona's name.
func (t *Theme) PersonaName(key string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(PersonaAccent(key)).Bold(true)
}

// QuotaStyle returns the status bar style for a quota level.
func (t *Theme) QuotaStyle(level quota.Level) lipgloss.Style {
	switch level {
	case quota.LevelExhausted:
		return t.QuotaExhausted
	case quota.LevelCritical:
		return t.QuotaCritical
	case quota.LevelLow:
		return t.QuotaLow
	default:
		return t.QuotaNormal
	}
}

// CharCountStyle returns the counter style for n characters typed.
func (t *Theme) CharCountStyle(n int) lipgloss.Style {
	switch {
	case n > CharCountDangerAt:
		return t.CharCountDanger
	case n > CharCountWarnAt:
		return t.CharCountWarning
	default:
		return t.CharCount
	}
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)
