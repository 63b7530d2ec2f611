// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable widgets for the personachat TUI.
//
// Toasts are non-blocking notices that sit above the status bar and
// dismiss themselves, so typing is never interrupted.
package components

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/personachat/internal/ui/styles"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind represents the type of toast notification.
type ToastKind int

const (
	// ToastKindStatus is an informational toast
	ToastKindStatus ToastKind = iota
	// ToastKindError is an error toast
	ToastKindError
	// ToastKindWarning is a warning toast, e.g. low quota
	ToastKindWarning
	// ToastKindSuccess is a success toast
	ToastKindSuccess
)

// DefaultToastDuration is the auto-dismiss duration for status toasts.
const DefaultToastDuration = 4 * time.Second

// ErrorToastDuration is the auto-dismiss duration for error toasts.
const ErrorToastDuration = 8 * time.Second

// WarningToastDuration is the auto-dismiss duration for warning toasts.
const WarningToastDuration = 6 * time.Second

// =============================================================================
// TOAST
// =============================================================================

// Toast is one notice.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

func newToast(message string, kind ToastKind, d time.Duration) Toast {
	return Toast{
		ID:        generateToastID(),
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
		Duration:  d,
	}
}

// NewErrorToast creates an error toast.
func NewErrorToast(message string) Toast {
	return newToast(message, ToastKindError, ErrorToastDuration)
}

// NewWarningToast creates a warning toast.
func NewWarningToast(message string) Toast {
	return newToast(message, ToastKindWarning, WarningToastDuration)
}

// NewStatusToast creates an informational toast.
func NewStatusToast(message string) Toast {
	return newToast(message, ToastKindStatus, DefaultToastDuration)
}

// NewSuccessToast creates a success toast.
func NewSuccessToast(message string) Toast {
	return newToast(message, ToastKindSuccess, DefaultToastDuration)
}

// IsExpired reports whether the toast has outlived its duration.
func (t Toast) IsExpired() bool {
	return time.Since(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TOAST STACK
// =============================================================================

// ToastStack holds the visible toasts, newest first.
type ToastStack struct {
	toasts    []Toast
	maxToasts int
}

// NewToastStack creates an empty stack showing at most three toasts.
func NewToastStack() *ToastStack {
	return &ToastStack{maxToasts: 3}
}

// Push adds a toast and returns the command that dismisses it.
func (s *ToastStack) Push(t Toast) tea.Cmd {
	s.toasts = append([]Toast{t}, s.toasts...)
	if len(s.toasts) > s.maxToasts {
		s.toasts = s.toasts[:s.maxToasts]
	}
	return DismissAfter(t.ID, t.Duration)
}

// Remove drops a toast by ID.
func (s *ToastStack) Remove(id int) {
	for i, t := range s.toasts {
		if t.ID == id {
			s.toasts = append(s.toasts[:i], s.toasts[i+1:]...)
			return
		}
	}
}

// Toasts returns a copy of the visible toasts.
func (s *ToastStack) Toasts() []Toast {
	out := make([]Toast, len(s.toasts))
	copy(out, s.toasts)
	return out
}

// Len returns the number of visible toasts.
func (s *ToastStack) Len() int {
	return len(s.toasts)
}

// Clear removes all toasts.
func (s *ToastStack) Clear() {
	s.toasts = nil
}

// =============================================================================
// TOAST MESSAGES
// =============================================================================

// ToastDismissMsg asks the owner to remove a toast.
type ToastDismissMsg struct {
	ID int
}

// DismissAfter returns a command that emits ToastDismissMsg after d.
func DismissAfter(id int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ToastDismissMsg{ID: id}
	})
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

// RenderToast renders a single toast.
func RenderToast(t Toast, width int) string {
	maxWidth := 60
	if width > 0 && width-8 < maxWidth {
		maxWidth = width - 8
	}
	if maxWidth < 10 {
		maxWidth = 10
	}

	var color lipgloss.AdaptiveColor
	var indicator string
	switch t.Kind {
	case ToastKindError:
		color, indicator = styles.Rose, styles.StatusIndicators.Error
	case ToastKindWarning:
		color, indicator = styles.Orange, styles.StatusIndicators.Warning
	case ToastKindSuccess:
		color, indicator = styles.Emerald, styles.StatusIndicators.Success
	default:
		color, indicator = styles.Cyan, styles.StatusIndicators.Info
	}

	body := wrapToastText(indicator+" "+t.Message, maxWidth)
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Foreground(color).
		Bold(t.Kind == ToastKindWarning || t.Kind == ToastKindError).
		Padding(0, 1).
		Render(body)
}

// RenderToastStack renders toasts right-aligned, one under another.
func RenderToastStack(toasts []Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(toasts))
	for _, t := range toasts {
		rendered = append(rendered, RenderToast(t, width))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	if width <= 0 {
		return stack
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
}

// =============================================================================
// HELPERS
// =============================================================================

var toastIDMutex sync.Mutex
var toastIDCounter int

// generateToastID generates a unique toast ID.
func generateToastID() int {
	toastIDMutex.Lock()
	defer toastIDMutex.Unlock()
	toastIDCounter++
	return toastIDCounter
}

// wrapToastText performs simple word wrapping for toast messages.
func wrapToastText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var lines []string
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if lipgloss.Width(currentLine.String())+1+lipgloss.Width(word) <= maxWidth {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}
	return strings.Join(lines, "\n")
}
