// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the personachat TUI.

All colors use Lip Gloss AdaptiveColor so one palette serves light and dark
terminals. The Theme is built once per program from the ui.theme setting.

# Color System (colors.go)

  - Purple - Persona names and selections
  - Pink - Brand color and header
  - Cyan - User prompt and shortcut keys
  - Emerald, Orange, Rose - Quota normal, low and critical

Each persona has its own accent, see PersonaAccent.

# Theme System (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	bar := theme.QuotaStyle(tracker.Level()).Render(tracker.String())

# Animations (animations.go)

SpinnerConfig values convert to bubbles spinners with Bubble(), and
RenderProgressBar draws the quota bar.
*/
package styles
