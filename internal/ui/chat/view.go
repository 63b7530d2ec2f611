// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/quota"
	"github.com/jeranaias/personachat/internal/session"
	"github.com/jeranaias/personachat/internal/ui/components"
	"github.com/jeranaias/personachat/internal/ui/styles"
	"github.com/jeranaias/personachat/internal/util"
)

// Fixed chrome heights on the chat screen.
const (
	headerHeight = 1
	inputHeight  = 4 // typing line, border, input, counter
	statusHeight = 1
)

func chromeHeight(s string) int {
	if s == "" {
		return 0
	}
	return lipgloss.Height(s)
}

// View renders the current screen.
func (m Model) View() string {
	switch m.screen {
	case ScreenUsername:
		return m.renderUsername()
	case ScreenPersonas:
		return m.renderPersonas()
	default:
		return m.renderChat()
	}
}

// =============================================================================
// USERNAME SCREEN
// =============================================================================

func (m Model) renderUsername() string {
	var b strings.Builder
	b.WriteString(m.theme.WelcomeLogo.Render("💬 personachat"))
	b.WriteString("\n\n")
	b.WriteString(m.theme.WelcomeInfo.Render("Chat with a cast of friendly characters."))
	b.WriteString("\n")
	b.WriteString(m.theme.WelcomeInfo.Render("What should we call you?"))
	b.WriteString("\n\n")
	b.WriteString(m.nameInput.View())
	if m.nameErr != "" {
		b.WriteString("\n\n")
		b.WriteString(m.theme.WelcomeError.Render(m.nameErr))
	}

	box := m.theme.WelcomeBox.Render(b.String())
	return m.place(box)
}

// =============================================================================
// PERSONA SCREEN
// =============================================================================

func (m Model) renderPersonas() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render(fmt.Sprintf("Hi %s! Who would you like to talk to?", m.sess.User())))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " " + m.theme.TypingText.Render("Loading personas"))
	case m.loadErr != nil:
		b.WriteString(m.theme.WelcomeError.Render(styles.StatusIndicators.Error + " Could not load personas: " + m.loadErr.Error()))
		b.WriteString("\n")
		b.WriteString(m.theme.ShortcutDesc.Render("Press r to retry, Esc to change user"))
	case m.catalog.Len() == 0:
		b.WriteString(m.theme.InfoStyle.Render("No personas are available right now."))
	default:
		for i, p := range m.catalog.List() {
			b.WriteString(m.renderPersonaItem(p, i == m.cursor))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.theme.ShortcutDesc.Render("↑/↓ choose • Enter start chatting • Esc change user"))
	}

	list := m.theme.PersonaList.Render(b.String())
	return m.place(list)
}

func (m Model) renderPersonaItem(p persona.Persona, selected bool) string {
	title := p.Avatar() + " " + p.DisplayName()
	if selected {
		title = m.theme.PersonaItemSelected.Render(title)
	} else {
		title = m.theme.PersonaItem.Render(m.theme.PersonaName(p.Key).Render(title))
	}
	lines := []string{title}
	if st := p.Status(); st != "" {
		lines = append(lines, m.theme.PersonaMeta.Render(st))
	}
	if pv := p.Preview(); pv != "" && !m.compact {
		lines = append(lines, m.theme.PersonaPreview.Render(pv))
	}
	return strings.Join(lines, "\n")
}

// place centers a box above the toasts.
func (m Model) place(box string) string {
	toasts := m.renderToasts()
	if m.width == 0 || m.height == 0 {
		if toasts == "" {
			return box
		}
		return box + "\n" + toasts
	}
	h := max(1, m.height-chromeHeight(toasts))
	out := lipgloss.Place(m.width, h, lipgloss.Center, lipgloss.Center, box)
	if toasts != "" {
		out += "\n" + toasts
	}
	return out
}

// =============================================================================
// CHAT SCREEN
// =============================================================================

func (m Model) renderChat() string {
	parts := []string{m.renderHeader(), m.viewport.View()}
	if toasts := m.renderToasts(); toasts != "" {
		parts = append(parts, toasts)
	}
	parts = append(parts, m.renderInput(), m.renderStatusBar())
	if m.showHelp {
		parts = append(parts, m.help.FullHelpView(m.keyMap.FullHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	p, ok := m.sess.Persona()
	if !ok {
		return m.theme.Header.Width(m.width).Render("personachat")
	}
	title := p.Avatar() + " " + m.theme.PersonaName(p.Key).Render(p.DisplayName())
	if st := p.Status(); st != "" {
		title += "  " + m.theme.HeaderSubtitle.Render(st)
	}
	return m.theme.Header.Width(m.width).MaxHeight(headerHeight).Render(title)
}

func (m Model) renderToasts() string {
	return components.RenderToastStack(m.toasts.Toasts(), m.width)
}

func (m Model) renderInput() string {
	typing := ""
	if m.streaming {
		name := "Someone"
		if p, ok := m.sess.Persona(); ok {
			name = p.DisplayName()
		}
		typing = m.spinner.View() + " " + m.theme.TypingText.Render(name+" is typing")
	}

	var field string
	if !m.sess.Quota().CanSend() {
		field = m.theme.QuotaExhausted.Render(exhaustedText(m.sess.Quota()))
	} else {
		field = m.input.View()
	}

	n := utf8.RuneCountInString(m.input.Value())
	counter := m.theme.CharCountStyle(n).Render(fmt.Sprintf("%d/%d", n, api.MaxMessageLength))
	if m.width > 0 {
		counter = lipgloss.PlaceHorizontal(max(0, m.width-2), lipgloss.Right, counter)
	}

	return typing + "\n" + m.theme.InputContainer.Width(m.width).Render(field+"\n"+counter)
}

func (m Model) renderStatusBar() string {
	q := m.sess.Quota()
	level := q.Level()

	left := "👤 " + m.sess.User()
	quotaText := m.theme.QuotaStyle(level).Render(q.String())
	if _, known := q.Remaining(); known {
		quotaText += " " + m.theme.QuotaStyle(level).Render(styles.RenderProgressBar(10, quotaPercent(q)))
	}
	if m.md.Enabled() {
		left += "  " + m.theme.ShortcutDesc.Render("md")
	}

	hints := m.help.ShortHelpView(m.keyMap.ShortHelp())
	bar := left + "  " + quotaText
	if m.width == 0 || lipgloss.Width(bar)+lipgloss.Width(hints)+4 <= m.width {
		bar += "  " + hints
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(statusHeight).Render(bar)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// bubbleWidth is the widest a message bubble may be.
func (m Model) bubbleWidth() int {
	w := m.width * 3 / 4
	if w < 24 {
		w = 24
	}
	return w
}

// refreshViewport re-renders the transcript into the viewport.
func (m *Model) refreshViewport() {
	if m.sess == nil {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
}

func (m Model) renderTranscript() string {
	lines := m.sess.Transcript()
	blocks := make([]string, 0, len(lines)+1)
	for _, l := range lines {
		blocks = append(blocks, m.renderLine(l))
	}
	if m.streaming && m.partial != "" {
		p, _ := m.sess.Persona()
		blocks = append(blocks, m.renderPersonaBubble(p, m.partial, false, false, false))
	}
	sep := "\n\n"
	if m.compact {
		sep = "\n"
	}
	return strings.Join(blocks, sep)
}

func (m Model) renderLine(l session.Line) string {
	switch l.Role {
	case session.RoleUser:
		return m.renderUserBubble(l)
	case session.RoleSystem:
		return m.theme.SystemBubble.Width(max(1, m.width)).Render(l.Text)
	default:
		p, ok := m.sess.Persona()
		if !ok || p.Key != l.Persona {
			p = persona.Persona{Key: l.Persona}
		}
		return m.renderPersonaBubble(p, l.Text, true, l.Failed, l.Canceled)
	}
}

func (m Model) renderUserBubble(l session.Line) string {
	if m.compact {
		return m.theme.InputPrompt.Render("You: ") + l.Text
	}
	label := m.theme.Timestamp.Render("You · " + l.At.Format("15:04"))
	bubble := m.theme.UserBubble.Width(m.fitWidth(l.Text)).Render(l.Text)
	block := lipgloss.JoinVertical(lipgloss.Right, label, bubble)
	if m.width == 0 {
		return block
	}
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, block)
}

// renderPersonaBubble renders a persona line. final text goes through
// markdown; streaming text is shown raw until the reply completes.
func (m Model) renderPersonaBubble(p persona.Persona, text string, final, failed, canceled bool) string {
	name := p.DisplayName()
	if m.compact {
		return m.theme.PersonaName(p.Key).Render(name+": ") + text
	}

	label := p.Avatar() + " " + m.theme.PersonaName(p.Key).Render(name)
	var bubble string
	switch {
	case failed:
		bubble = m.theme.FailedBubble.Width(m.fitWidth(text)).Render(text)
	case final && !canceled && m.md.Enabled():
		bubble = m.theme.PersonaBubble.Render(m.md.Render(text))
	default:
		bubble = m.theme.PersonaBubble.Width(m.fitWidth(text)).Render(text)
	}
	if canceled {
		bubble += "\n" + m.theme.CanceledNote.Render("(stopped)")
	}
	return label + "\n" + bubble
}

// fitWidth sizes a plain-text bubble to its content, capped at bubbleWidth.
// The result includes the bubble's horizontal padding.
func (m Model) fitWidth(text string) int {
	w := 0
	for _, line := range strings.Split(text, "\n") {
		w = max(w, util.StringWidth(line))
	}
	return min(w+2, m.bubbleWidth()-2)
}

// quotaPercent is the share of today's messages still available.
func quotaPercent(t *quota.Tracker) float64 {
	remaining, known := t.Remaining()
	if !known || t.Limit() <= 0 {
		return 0
	}
	return float64(remaining) * 100 / float64(t.Limit())
}
