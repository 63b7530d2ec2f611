// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/config"
	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/render"
	"github.com/jeranaias/personachat/internal/session"
	"github.com/jeranaias/personachat/internal/ui/components"
	"github.com/jeranaias/personachat/internal/ui/styles"
)

// =============================================================================
// SCREENS
// =============================================================================

// Screen is the step of the flow currently shown.
type Screen int

const (
	ScreenUsername Screen = iota // Asking for a username
	ScreenPersonas               // Picking a persona
	ScreenChat                   // Talking to the persona
)

// String returns the screen name.
func (s Screen) String() string {
	switch s {
	case ScreenUsername:
		return "username"
	case ScreenPersonas:
		return "personas"
	case ScreenChat:
		return "chat"
	default:
		return "unknown"
	}
}

// eventBuffer bounds reply events waiting for the update loop.
const eventBuffer = 16

// =============================================================================
// OPTIONS
// =============================================================================

// PersonaSource lists the available personas. *api.Client satisfies it.
type PersonaSource interface {
	ListPersonas(ctx context.Context) (*persona.Catalog, error)
}

// Options configures the chat model.
type Options struct {
	Session  *session.Session
	Personas PersonaSource
	Config   *config.Config
	Logger   zerolog.Logger

	// Context is the parent of every request. Defaults to Background.
	Context context.Context
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	screen Screen

	// Styling
	theme   *styles.Theme
	md      *render.Markdown
	compact bool

	// Dimensions
	width  int
	height int

	// Backend
	ctx      context.Context
	sess     *session.Session
	personas PersonaSource
	log      zerolog.Logger

	// Persona list
	catalog        *persona.Catalog
	cursor         int
	defaultPersona string
	loading        bool
	loadErr        error

	// Reply in flight
	streaming bool
	replySeq  int
	replyID   string
	partial   string
	buffer    *StreamingBuffer
	events    chan tea.Msg

	// UI Components
	viewport  viewport.Model
	input     textinput.Model
	nameInput textinput.Model
	spinner   spinner.Model
	help      help.Model
	toasts    *components.ToastStack

	keyMap   KeyMap
	showHelp bool
	nameErr  string
}

// New creates the chat model. When the config names a valid user the
// username screen is skipped.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = api.MaxMessageLength
	input.Prompt = "> "

	nameInput := textinput.New()
	nameInput.Placeholder = "your name"
	nameInput.CharLimit = 32
	nameInput.Prompt = "> "
	nameInput.SetValue(cfg.User.Username)
	nameInput.Focus()

	theme := styles.NewTheme(cfg.UI.Theme)
	sp := spinner.New()
	sp.Spinner = styles.TypingSpinner.Bubble()
	sp.Style = theme.Spinner
	input.PromptStyle = theme.InputPrompt
	nameInput.PromptStyle = theme.InputPrompt

	m := Model{
		screen:         ScreenUsername,
		theme:          theme,
		md:             render.NewMarkdown(cfg.UI.Theme, render.DefaultWidth, cfg.UI.Markdown),
		compact:        cfg.UI.Compact,
		ctx:            ctx,
		sess:           opts.Session,
		personas:       opts.Personas,
		log:            opts.Logger.With().Str("component", "tui").Logger(),
		defaultPersona: cfg.User.DefaultPersona,
		buffer:         NewStreamingBuffer(),
		events:         make(chan tea.Msg, eventBuffer),
		viewport:       viewport.New(render.DefaultWidth, 20),
		input:          input,
		nameInput:      nameInput,
		spinner:        sp,
		help:           help.New(),
		toasts:         components.NewToastStack(),
		keyMap:         DefaultKeyMap(),
	}

	if cfg.User.Username != "" && m.sess.SetUser(cfg.User.Username) == nil {
		m.screen = ScreenPersonas
		m.loading = true
		m.nameInput.Blur()
	}
	return m
}

// Init starts listening for reply events and, when the user is already
// known, loads personas and the quota.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.listenEvents()}
	if m.screen == ScreenPersonas {
		cmds = append(cmds, m.loadPersonasCmd(), m.refreshStatsCmd(), m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Screen returns the current screen.
func (m Model) Screen() Screen {
	return m.screen
}

// Streaming reports whether a reply is in flight.
func (m Model) Streaming() bool {
	return m.streaming
}

// Toasts returns the visible toasts.
func (m Model) Toasts() []components.Toast {
	return m.toasts.Toasts()
}

// =============================================================================
// COMMANDS
// =============================================================================

// listenEvents waits for the next event from a session callback.
func (m Model) listenEvents() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

// post hands a message from a transport goroutine to the update loop.
// A full buffer means the program has stopped reading; the event is dropped.
func (m Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
		m.log.Warn().Msgf("reply event dropped: %T", msg)
	}
}

func (m Model) loadPersonasCmd() tea.Cmd {
	src, ctx := m.personas, m.ctx
	return func() tea.Msg {
		if src == nil {
			return PersonasLoadedMsg{Err: fmt.Errorf("no persona source configured")}
		}
		cat, err := src.ListPersonas(ctx)
		return PersonasLoadedMsg{Catalog: cat, Err: err}
	}
}

func (m Model) refreshStatsCmd() tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		return StatsLoadedMsg{Err: sess.RefreshStats(ctx)}
	}
}

func (m Model) selectPersonaCmd(p persona.Persona) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		greeting, err := sess.SelectPersona(ctx, p)
		return PersonaSelectedMsg{Persona: p, Greeting: greeting, Err: err}
	}
}

// pushToast shows a toast and re-lays out around it.
func (m *Model) pushToast(t components.Toast) tea.Cmd {
	cmd := m.toasts.Push(t)
	m.layout()
	return cmd
}
