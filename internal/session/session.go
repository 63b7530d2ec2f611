// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/quota"
	"github.com/jeranaias/personachat/internal/turn"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoUser is returned when no username has been set.
	ErrNoUser = errors.New("no username set")

	// ErrUsernameTooShort is returned by SetUser for names under MinUsernameLength.
	ErrUsernameTooShort = fmt.Errorf("username must be at least %d characters", MinUsernameLength)

	// ErrNoPersona is returned when sending before a persona is selected.
	ErrNoPersona = errors.New("no persona selected")

	// ErrMessageTooLong is returned for messages over api.MaxMessageLength runes.
	ErrMessageTooLong = fmt.Errorf("message longer than %d characters", api.MaxMessageLength)
)

// MinUsernameLength is the shortest accepted username, in runes.
const MinUsernameLength = 3

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the part of the API client a session needs.
// *api.Client satisfies it.
type Backend interface {
	SelectPersona(ctx context.Context, username, personaKey string) (*api.Selection, error)
	Stats(ctx context.Context, username string) (*api.UserStats, error)
	StreamChat(ctx context.Context, req api.ChatRequest, t *turn.Turn) error
	SendChat(ctx context.Context, req api.ChatRequest, t *turn.Turn) error
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Session.
type Options struct {
	// Streaming selects the SSE transport; false uses the single-shot POST.
	Streaming bool

	// DailyLimit seeds the quota tracker until the backend reports one.
	DailyLimit int

	// Turn is passed to the accumulator for every reply.
	Turn turn.Options

	// OnQuotaWarning fires after a reply when only a few messages are left.
	OnQuotaWarning func(remaining int)

	Logger zerolog.Logger
}

// DefaultOptions returns streaming options with the default quota.
func DefaultOptions() Options {
	return Options{
		Streaming:  true,
		DailyLimit: quota.DefaultDailyLimit,
		Turn:       turn.DefaultOptions(),
		Logger:     zerolog.Nop(),
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one user's conversation with one persona at a time.
// Safe for concurrent use; the transport runs in its own goroutine.
type Session struct {
	backend Backend
	opts    Options
	log     zerolog.Logger
	acc     *turn.Accumulator
	quota   *quota.Tracker

	mu         sync.Mutex
	user       string
	persona    *persona.Persona
	sessionID  string
	startTime  time.Time
	transcript []Line
	pending    *pendingReply
	wg         sync.WaitGroup
}

// pendingReply is the reply a turn is still producing.
type pendingReply struct {
	turn    *turn.Turn
	persona string
}

// New creates a session. The caller owns it; there is no shared instance.
func New(backend Backend, opts Options) *Session {
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = quota.DefaultDailyLimit
	}
	opts.Turn.Logger = opts.Logger
	return &Session{
		backend:   backend,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "session").Logger(),
		acc:       turn.New(opts.Turn),
		quota:     quota.NewTracker(opts.DailyLimit),
		startTime: time.Now(),
	}
}

// =============================================================================
// IDENTITY
// =============================================================================

// NormalizeUsername trims and NFC-normalizes name and checks its length.
func NormalizeUsername(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if utf8.RuneCountInString(name) < MinUsernameLength {
		return "", ErrUsernameTooShort
	}
	return name, nil
}

// SetUser sets the username. Changing user forgets the quota and persona.
func (s *Session) SetUser(name string) error {
	name, err := NormalizeUsername(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	changed := s.user != name
	s.mu.Unlock()
	if changed {
		s.Logout()
		s.mu.Lock()
		s.user = name
		s.mu.Unlock()
		s.log.Info().Str("user", name).Msg("user set")
	}
	return nil
}

// Logout cancels any reply and resets user, persona, session id and transcript.
func (s *Session) Logout() {
	s.cancelPending()
	s.mu.Lock()
	s.user = ""
	s.persona = nil
	s.sessionID = ""
	s.transcript = nil
	s.startTime = time.Now()
	s.mu.Unlock()
	s.quota.Reset()
}

// User returns the current username, or "".
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Persona returns the selected persona.
func (s *Session) Persona() (persona.Persona, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persona == nil {
		return persona.Persona{}, false
	}
	return *s.persona, true
}

// SessionID returns the backend session id, or "" before the first reply.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Quota returns the quota tracker.
func (s *Session) Quota() *quota.Tracker {
	return s.quota
}

// =============================================================================
// PERSONA SELECTION
// =============================================================================

// SelectPersona switches to p, clears the transcript and returns the greeting,
// which becomes the first persona line. Registering the choice with the
// backend is best effort.
func (s *Session) SelectPersona(ctx context.Context, p persona.Persona) (string, error) {
	user := s.User()
	if user == "" {
		return "", ErrNoUser
	}
	s.cancelPending()

	sel, err := s.backend.SelectPersona(ctx, user, p.Key)
	if err != nil {
		s.log.Warn().Err(err).Str("persona", p.Key).Msg("persona selection not registered")
	}

	greeting := p.Greeting()
	s.mu.Lock()
	s.persona = &p
	s.transcript = nil
	if sel != nil && sel.SessionID != "" {
		s.sessionID = sel.SessionID
	}
	s.appendLocked(Line{Role: RolePersona, Persona: p.Key, Text: greeting})
	s.mu.Unlock()

	s.log.Info().Str("persona", p.Key).Msg("persona selected")
	return greeting, nil
}

// RefreshStats pulls the remaining count and daily limit from the backend.
func (s *Session) RefreshStats(ctx context.Context) error {
	user := s.User()
	if user == "" {
		return ErrNoUser
	}
	stats, err := s.backend.Stats(ctx, user)
	if err != nil {
		return err
	}
	s.quota.SetLimit(stats.DailyLimit)
	s.quota.Update(stats.RemainingMessages)
	return nil
}

// =============================================================================
// SENDING
// =============================================================================

// Send appends the user's message and starts a reply. Any reply still in
// flight is canceled first. The transport runs in a goroutine; h receives
// renders and the outcome. By the time h.OnTerminal runs the transcript and
// quota already reflect the outcome.
func (s *Session) Send(ctx context.Context, text string, h turn.Handlers) (*turn.Turn, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	user, p := s.user, s.persona
	s.mu.Unlock()

	switch {
	case user == "":
		return nil, ErrNoUser
	case p == nil:
		return nil, ErrNoPersona
	case text == "":
		return nil, api.ErrEmptyMessage
	case utf8.RuneCountInString(text) > api.MaxMessageLength:
		return nil, ErrMessageTooLong
	case !s.quota.CanSend():
		return nil, fmt.Errorf("%w: resets at %s", turn.ErrQuotaExceeded,
			s.quota.ExhaustedUntil().Format("15:04"))
	}

	s.cancelPending()

	s.mu.Lock()
	s.appendLocked(Line{Role: RoleUser, Text: text})
	s.mu.Unlock()

	var t *turn.Turn
	wrapped := turn.Handlers{
		OnRender: h.OnRender,
		OnTerminal: func(out turn.Outcome) {
			s.settle(t, out)
			if h.OnTerminal != nil {
				h.OnTerminal(out)
			}
		},
	}

	// t must be visible to the terminal callback before any event arrives,
	// so the transport starts only after pending is recorded.
	s.mu.Lock()
	t = s.acc.Start(ctx, wrapped)
	s.pending = &pendingReply{turn: t, persona: p.Key}
	s.mu.Unlock()

	req := api.ChatRequest{Message: text, Persona: p.Key, Username: user}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		if s.opts.Streaming {
			err = s.backend.StreamChat(ctx, req, t)
		} else {
			err = s.backend.SendChat(ctx, req, t)
		}
		if err != nil {
			s.log.Debug().Err(err).Str("turn", t.ID()).Msg("transport returned")
		}
	}()

	return t, nil
}

// settle records a terminal outcome for t.
func (s *Session) settle(t *turn.Turn, out turn.Outcome) {
	s.mu.Lock()
	if s.pending == nil || s.pending.turn != t {
		s.mu.Unlock()
		return
	}
	pr := s.pending
	s.pending = nil

	line := Line{Role: RolePersona, Persona: pr.persona}
	if out.OK() {
		line.Text = out.Text
		if out.SessionID != "" {
			s.sessionID = out.SessionID
		}
	} else {
		line.Text = out.Err.UserMessage()
		line.Failed = true
	}
	s.appendLocked(line)
	s.mu.Unlock()

	switch {
	case out.OK() && out.HasRemaining:
		if s.quota.Update(out.Remaining) && s.opts.OnQuotaWarning != nil {
			s.opts.OnQuotaWarning(out.Remaining)
		}
	case !out.OK() && out.Err.Class == turn.ClassQuota:
		s.quota.MarkExhausted()
	}
}

// Cancel stops the reply in flight. Text already rendered is kept in the
// transcript, marked as canceled.
func (s *Session) Cancel() {
	s.cancelPending()
}

func (s *Session) cancelPending() {
	s.mu.Lock()
	pr := s.pending
	s.mu.Unlock()
	if pr == nil {
		return
	}
	pr.turn.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != pr || pr.turn.State() != turn.StateCanceled {
		return
	}
	s.pending = nil
	if partial := pr.turn.Text(); partial != "" {
		s.appendLocked(Line{Role: RolePersona, Persona: pr.persona, Text: partial, Canceled: true})
	}
}

// Busy reports whether a reply is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Wait blocks until every transport goroutine has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels any reply and waits for the transport to stop.
func (s *Session) Close() {
	s.cancelPending()
	s.wg.Wait()
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status is a snapshot for status bars and the stats command.
type Status struct {
	User      string
	Persona   string
	SessionID string
	StartTime time.Time
	Duration  time.Duration
	Messages  int
	Quota     string
	Level     quota.Level
	Busy      bool
}

// Status returns the current session status.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		User:      s.user,
		SessionID: s.sessionID,
		StartTime: s.startTime,
		Duration:  time.Since(s.startTime),
		Messages:  len(s.transcript),
		Busy:      s.pending != nil,
	}
	if s.persona != nil {
		st.Persona = s.persona.Key
	}
	s.mu.Unlock()

	st.Quota = s.quota.String()
	st.Level = s.quota.Level()
	return st
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
