// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/quota"
	"github.com/jeranaias/personachat/internal/render"
	"github.com/jeranaias/personachat/internal/session"
	"github.com/jeranaias/personachat/internal/turn"
	"github.com/jeranaias/personachat/internal/ui/components"
	"github.com/jeranaias/personachat/internal/ui/styles"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamTickMsg:
		return m.handleStreamTick()

	case ReplyDoneMsg:
		return m.handleReplyDone(msg)

	case PersonasLoadedMsg:
		return m.handlePersonasLoaded(msg)

	case PersonaSelectedMsg:
		return m.handlePersonaSelected(msg)

	case StatsLoadedMsg:
		if msg.Err != nil {
			m.log.Debug().Err(msg.Err).Msg("stats refresh failed")
		}
		return m, nil

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case components.ToastDismissMsg:
		m.toasts.Remove(msg.ID)
		m.layout()
		return m, nil

	case spinner.TickMsg:
		if m.streaming || m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m.updateInputs(msg)
}

// updateInputs forwards anything else to the focused text input.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case ScreenUsername:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case ScreenChat:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.help.Width = msg.Width
	m.input.Width = max(10, msg.Width-6)
	m.md.SetWidth(m.bubbleWidth() - 4)
	m.layout()
	// The resize redraws anyway, so show the newest text without waiting a frame.
	if m.streaming {
		if text, ok := m.buffer.ForceFlush(); ok {
			m.partial = text
		}
	}
	m.refreshViewport()
	return m, nil
}

// layout sizes the viewport to the space left by the fixed chrome.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.viewport.Width = m.width
	h := m.height - headerHeight - inputHeight - statusHeight
	h -= chromeHeight(m.renderToasts())
	if m.showHelp {
		h -= chromeHeight(m.help.FullHelpView(m.keyMap.FullHelp()))
	}
	m.viewport.Height = max(1, h)
}

// =============================================================================
// KEYBOARD
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		m.sess.Cancel()
		return m, tea.Quit
	}
	if key.Matches(msg, m.keyMap.Help) {
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil
	}

	switch m.screen {
	case ScreenUsername:
		return m.handleUsernameKey(msg)
	case ScreenPersonas:
		return m.handlePersonaKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m Model) handleUsernameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keyMap.Submit) {
		m.nameErr = ""
		return m.updateInputs(msg)
	}

	if err := m.sess.SetUser(m.nameInput.Value()); err != nil {
		if errors.Is(err, session.ErrUsernameTooShort) {
			m.nameErr = fmt.Sprintf("Please enter at least %d characters.", session.MinUsernameLength)
		} else {
			m.nameErr = err.Error()
		}
		return m, nil
	}

	m.nameErr = ""
	m.nameInput.Blur()
	m.screen = ScreenPersonas
	m.loading = true
	m.loadErr = nil
	return m, tea.Batch(m.loadPersonasCmd(), m.refreshStatsCmd(), m.spinner.Tick)
}

func (m Model) handlePersonaKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := m.catalog.Len()
	switch {
	case key.Matches(msg, m.keyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keyMap.Down):
		if m.cursor < n-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keyMap.Submit):
		if m.loading || n == 0 {
			return m, nil
		}
		p := m.catalog.List()[m.cursor]
		return m, m.selectPersonaCmd(p)
	case key.Matches(msg, m.keyMap.Personas):
		if _, ok := m.sess.Persona(); ok {
			return m.enterChat()
		}
	case key.Matches(msg, m.keyMap.Cancel):
		m.sess.Logout()
		m.screen = ScreenUsername
		m.nameInput.Focus()
		return m, textinput.Blink
	case msg.String() == "r":
		if m.loadErr != nil && !m.loading {
			m.loading = true
			m.loadErr = nil
			return m, tea.Batch(m.loadPersonasCmd(), m.spinner.Tick)
		}
	}
	return m, nil
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Cancel):
		if !m.streaming {
			return m, nil
		}
		m.sess.Cancel()
		m.endReply()
		return m, m.pushToast(components.NewStatusToast("Reply stopped"))

	case key.Matches(msg, m.keyMap.Personas):
		m.sess.Cancel()
		m.endReply()
		m.input.Blur()
		m.screen = ScreenPersonas
		return m, nil

	case key.Matches(msg, m.keyMap.Clear):
		m.sess.Clear()
		m.endReply()
		return m, nil

	case key.Matches(msg, m.keyMap.Markdown):
		m.md.SetEnabled(!m.md.Enabled())
		m.refreshViewport()
		state := "off"
		if m.md.Enabled() {
			state = "on"
		}
		return m, m.pushToast(components.NewStatusToast("Markdown " + state))

	case key.Matches(msg, m.keyMap.Up):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keyMap.Down):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if !m.input.Focused() && m.sess.Quota().CanSend() {
		m.input.Focus()
	}
	return m.updateInputs(msg)
}

// =============================================================================
// SENDING
// =============================================================================

// submit sends the input. The reply id ties buffered renders and the
// terminal event to this send, so events from a replaced reply are ignored.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}

	m.replySeq++
	id := fmt.Sprintf("reply-%d", m.replySeq)
	m.buffer.Begin(id)

	buf, post := m.buffer, m.post
	_, err := m.sess.Send(m.ctx, text, turn.Handlers{
		OnRender: func(s string) { buf.Set(id, s) },
		OnTerminal: func(out turn.Outcome) {
			post(ReplyDoneMsg{ReplyID: id, Outcome: out})
		},
	})
	if err != nil {
		m.buffer.Reset()
		return m, m.sendErrorToast(err)
	}

	m.input.Reset()
	m.replyID = id
	m.streaming = true
	m.partial = ""
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, tea.Batch(m.spinner.Tick, streamTickCmd(m.buffer.FrameInterval()))
}

func (m *Model) sendErrorToast(err error) tea.Cmd {
	switch {
	case errors.Is(err, api.ErrEmptyMessage):
		return nil
	case errors.Is(err, turn.ErrQuotaExceeded):
		m.input.Blur()
		return m.pushToast(components.NewErrorToast(exhaustedText(m.sess.Quota())))
	case errors.Is(err, session.ErrMessageTooLong):
		return m.pushToast(components.NewWarningToast(
			fmt.Sprintf("Messages are limited to %d characters.", api.MaxMessageLength)))
	default:
		return m.pushToast(components.NewErrorToast(err.Error()))
	}
}

// endReply drops the in-flight view state and redraws from the transcript.
func (m *Model) endReply() {
	m.streaming = false
	m.replyID = ""
	m.partial = ""
	m.buffer.Reset()
	m.refreshViewport()
	m.viewport.GotoBottom()
}

// =============================================================================
// STREAMING
// =============================================================================

func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if !m.streaming {
		return m, nil
	}
	if text, ok := m.buffer.Flush(); ok {
		m.partial = text
		m.refreshViewport()
		m.viewport.GotoBottom()
	}
	return m, streamTickCmd(m.buffer.FrameInterval())
}

// handleReplyDone performs the final render. The session has already
// written the outcome to the transcript and the quota tracker.
func (m Model) handleReplyDone(msg ReplyDoneMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.listenEvents()}
	if msg.ReplyID != m.replyID {
		return m, tea.Batch(cmds...)
	}
	m.endReply()

	out := msg.Outcome
	switch {
	case !out.OK() && out.Err.Class == turn.ClassQuota:
		m.input.Blur()
		cmds = append(cmds, m.pushToast(components.NewErrorToast(exhaustedText(m.sess.Quota()))))
	case out.OK() && out.HasRemaining && out.Remaining > 0 && out.Remaining <= quota.WarnThreshold:
		cmds = append(cmds, m.pushToast(components.NewWarningToast(quota.WarningText(out.Remaining))))
	case !out.OK():
		m.log.Warn().Err(out.Err).Str("reply", msg.ReplyID).Msg("reply failed")
	}
	return m, tea.Batch(cmds...)
}

func exhaustedText(t *quota.Tracker) string {
	until := t.ExhaustedUntil()
	if until.IsZero() {
		return "You've reached your daily message limit."
	}
	return fmt.Sprintf("Daily limit reached. Chat unlocks at %s.", until.Format("15:04"))
}

// =============================================================================
// PERSONAS
// =============================================================================

func (m Model) handlePersonasLoaded(msg PersonasLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.Err != nil {
		m.loadErr = msg.Err
		m.log.Error().Err(msg.Err).Msg("loading personas failed")
		return m, nil
	}
	m.catalog = msg.Catalog
	m.loadErr = nil
	m.cursor = 0
	for i, k := range m.catalog.Keys() {
		if k == m.defaultPersona {
			m.cursor = i
			break
		}
	}
	return m, nil
}

func (m Model) handlePersonaSelected(msg PersonaSelectedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.pushToast(components.NewErrorToast(msg.Err.Error()))
	}
	return m.enterChat()
}

func (m Model) enterChat() (tea.Model, tea.Cmd) {
	m.screen = ScreenChat
	m.layout()
	m.endReply()
	if !m.sess.Quota().CanSend() {
		return m, nil
	}
	m.input.Focus()
	return m, textinput.Blink
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

// handleConfigReloaded applies the display settings and quota limit of a
// reloaded config. Identity and API settings take effect on restart.
func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.pushToast(components.NewWarningToast("Config reload failed: " + msg.Err.Error()))
	}
	cfg := msg.Config
	if cfg == nil {
		return m, nil
	}

	if cfg.UI.Theme != m.theme.Name {
		m.theme = styles.NewTheme(cfg.UI.Theme)
		m.theme.SetSize(m.width, m.height)
		m.spinner.Style = m.theme.Spinner
		m.input.PromptStyle = m.theme.InputPrompt
		m.nameInput.PromptStyle = m.theme.InputPrompt
		m.md = render.NewMarkdown(cfg.UI.Theme, m.bubbleWidth()-4, cfg.UI.Markdown)
	} else {
		m.md.SetEnabled(cfg.UI.Markdown)
	}
	m.compact = cfg.UI.Compact
	m.sess.Quota().SetLimit(cfg.Quota.DailyLimit)
	m.refreshViewport()
	return m, m.pushToast(components.NewSuccessToast("Settings reloaded"))
}
