// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultInactivityTimeout fails a turn whose stream goes quiet.
const DefaultInactivityTimeout = 90 * time.Second

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures turns started by an Accumulator.
type Options struct {
	Logger zerolog.Logger

	// InactivityTimeout fails the turn when no event arrives in time.
	// Zero disables the timer.
	InactivityTimeout time.Duration

	// AcceptLegacy treats untagged completion-shaped payloads as completion.
	AcceptLegacy bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Logger:            zerolog.Nop(),
		InactivityTimeout: DefaultInactivityTimeout,
		AcceptLegacy:      true,
	}
}

// =============================================================================
// CALLBACKS
// =============================================================================

// Handlers receive the observable effects of a turn.
// Both are optional. They are never invoked concurrently for the same turn.
type Handlers struct {
	// OnRender receives the full accumulated text after every non-empty chunk.
	// Completion does not render again; the final text arrives in
	// Outcome.Text and the terminal handler does the final pass.
	OnRender func(text string)

	// OnTerminal fires at most once, when the turn completes or fails.
	// It never fires for a canceled turn.
	OnTerminal func(Outcome)
}

// Outcome is what the terminal callback receives.
type Outcome struct {
	// Text is the full response on success. The caller performs the final
	// render pass with it. It is empty on failure.
	Text         string
	Remaining    int
	HasRemaining bool
	SessionID    string
	Legacy       bool
	Err          *Failure
}

// OK reports whether the turn completed successfully.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle state of a turn.
type State int

const (
	StateOpen State = iota
	StateCompleted
	StateFailed
	StateCanceled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// =============================================================================
// TURN
// =============================================================================

// Turn is one outstanding request and its accumulated response.
type Turn struct {
	id       string
	opts     Options
	log      zerolog.Logger
	handlers Handlers

	ctx     context.Context
	release context.CancelFunc
	done    chan struct{}
	once    sync.Once

	// deliver serializes event application and callbacks.
	// Cancel only takes mu, so it is safe to call from inside a callback.
	deliver sync.Mutex

	mu        sync.Mutex
	state     State
	buf       strings.Builder
	events    int
	malformed int
	failure   *Failure
	timer     *time.Timer
}

func newTurn(parent context.Context, opts Options, h Handlers) *Turn {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	id := uuid.New().String()
	t := &Turn{
		id:       id,
		opts:     opts,
		log:      opts.Logger.With().Str("turn", id).Logger(),
		handlers: h,
		ctx:      ctx,
		release:  cancel,
		done:     make(chan struct{}),
	}
	if opts.InactivityTimeout > 0 {
		t.timer = time.AfterFunc(opts.InactivityTimeout, t.onInactive)
	}
	t.log.Debug().Msg("turn started")
	return t
}

// ID returns the turn identifier used in logs.
func (t *Turn) ID() string { return t.id }

// Context is canceled once the turn ends for any reason.
// Transports bind their request to it so the connection is released.
func (t *Turn) Context() context.Context { return t.ctx }

// Done is closed once the turn has ended and its terminal callback returned.
func (t *Turn) Done() <-chan struct{} { return t.done }

// State returns the current lifecycle state.
func (t *Turn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Text returns the accumulated text.
func (t *Turn) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// Failure returns the terminal failure, or nil.
func (t *Turn) Failure() *Failure {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// Feed decodes one raw payload and applies it.
// Payloads that fail to decode are logged and skipped.
func (t *Turn) Feed(data []byte) bool {
	ev, err := ParseEvent(data, t.opts.AcceptLegacy)
	if err != nil {
		t.OnMalformed(data, err)
		return false
	}
	return t.OnEvent(ev)
}

// OnEvent applies one event. It returns false if the turn was already
// closed and the event was ignored.
func (t *Turn) OnEvent(ev Event) bool {
	t.deliver.Lock()
	defer t.deliver.Unlock()

	t.mu.Lock()
	if t.state != StateOpen {
		t.mu.Unlock()
		t.log.Debug().Str("kind", ev.Kind.String()).Msg("event after turn closed, ignoring")
		return false
	}
	t.events++
	t.touchLocked()

	switch ev.Kind {
	case KindChunk:
		if ev.Text == "" {
			t.mu.Unlock()
			return true
		}
		t.buf.WriteString(ev.Text)
		text := t.buf.String()
		t.mu.Unlock()
		t.render(text)
		return true

	case KindComplete:
		out := Outcome{
			Text:         t.buf.String(),
			Remaining:    ev.Remaining,
			HasRemaining: ev.HasRemaining,
			SessionID:    ev.SessionID,
			Legacy:       ev.Legacy,
		}
		t.closeLocked(StateCompleted, nil)
		t.mu.Unlock()
		if ev.Legacy {
			t.log.Debug().Msg("untagged completion accepted")
		}
		t.terminate(out)
		return true

	case KindError:
		f := &Failure{
			Class:  ClassTransport,
			Reason: ev.Message,
			Err:    fmt.Errorf("%w: %s", ErrRemote, ev.Message),
		}
		t.closeLocked(StateFailed, f)
		t.mu.Unlock()
		t.log.Warn().Str("reason", ev.Message).Msg("backend reported error")
		t.terminate(Outcome{Err: f})
		return true

	default:
		t.mu.Unlock()
		t.log.Debug().Str("tag", ev.Tag).Msg("skipping unrecognized event")
		return true
	}
}

// OnMalformed records a payload that failed to decode. The turn stays open.
func (t *Turn) OnMalformed(raw []byte, err error) {
	t.mu.Lock()
	if t.state == StateOpen {
		t.malformed++
		t.touchLocked()
	}
	t.mu.Unlock()
	t.log.Warn().Err(err).Int("bytes", len(raw)).Msg("skipping malformed event")
}

// Fail ends the turn with a transport-level failure. Errors wrapping
// ErrQuotaExceeded are classified as quota-exceeded.
func (t *Turn) Fail(err error) {
	t.fail(Classify(err))
}

// EndOfStream is called when the connection closes. Without a prior
// completion or error the turn fails as a transport error.
func (t *Turn) EndOfStream() {
	t.mu.Lock()
	var err error
	if t.events == 0 && t.malformed > 0 {
		err = fmt.Errorf("%w: %d payload(s), none usable", ErrMalformedEvent, t.malformed)
	} else {
		err = ErrStreamClosed
	}
	t.mu.Unlock()
	t.fail(&Failure{Class: ClassTransport, Err: err})
}

// Complete is the non-streaming path: one chunk followed by completion.
func (t *Turn) Complete(response string, remaining int, sessionID string) {
	t.OnEvent(Event{Kind: KindChunk, Text: response})
	t.OnEvent(Event{
		Kind:         KindComplete,
		Remaining:    remaining,
		HasRemaining: true,
		SessionID:    sessionID,
	})
}

// render hands text to OnRender unless the turn was canceled after the
// chunk was applied.
func (t *Turn) render(text string) {
	if t.handlers.OnRender == nil || t.State() == StateCanceled {
		return
	}
	t.handlers.OnRender(text)
}

// Cancel stops the turn. No callback starts afterwards and text already
// rendered is left as-is. Cancel does not wait for a render that is already
// running on the delivering goroutine; that one call may still finish after
// Cancel returns. Canceling a closed turn does nothing.
func (t *Turn) Cancel() {
	t.mu.Lock()
	if t.state != StateOpen {
		t.mu.Unlock()
		return
	}
	t.closeLocked(StateCanceled, nil)
	t.mu.Unlock()
	t.log.Debug().Msg("turn canceled")
	t.finish()
}

func (t *Turn) fail(f *Failure) {
	t.deliver.Lock()
	defer t.deliver.Unlock()

	t.mu.Lock()
	if t.state != StateOpen {
		t.mu.Unlock()
		return
	}
	t.closeLocked(StateFailed, f)
	t.mu.Unlock()

	if errors.Is(f.Err, context.Canceled) {
		t.log.Debug().Err(f.Err).Msg("turn failed")
	} else {
		t.log.Warn().Err(f.Err).Str("class", string(f.Class)).Msg("turn failed")
	}
	t.terminate(Outcome{Err: f})
}

func (t *Turn) onInactive() {
	t.fail(&Failure{
		Class: ClassTransport,
		Err:   fmt.Errorf("%w: no event for %v", ErrInactivity, t.opts.InactivityTimeout),
	})
}

// touchLocked restarts the inactivity timer. Caller holds mu.
func (t *Turn) touchLocked() {
	if t.timer != nil {
		t.timer.Reset(t.opts.InactivityTimeout)
	}
}

// closeLocked moves the turn out of the open state. Caller holds mu.
func (t *Turn) closeLocked(s State, f *Failure) {
	t.state = s
	t.failure = f
	if t.timer != nil {
		t.timer.Stop()
	}
}

// terminate runs the terminal callback, then releases the turn.
func (t *Turn) terminate(out Outcome) {
	if t.handlers.OnTerminal != nil {
		t.handlers.OnTerminal(out)
	}
	t.finish()
}

func (t *Turn) finish() {
	t.once.Do(func() {
		t.release()
		close(t.done)
	})
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Accumulator owns the single open turn of a conversation.
type Accumulator struct {
	opts Options

	mu      sync.Mutex
	current *Turn
}

// New creates an accumulator.
func New(opts Options) *Accumulator {
	return &Accumulator{opts: opts}
}

// Options returns the options new turns are started with.
func (a *Accumulator) Options() Options {
	return a.opts
}

// Start cancels any open turn and opens a new one.
func (a *Accumulator) Start(ctx context.Context, h Handlers) *Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.current.Cancel()
	}
	a.current = newTurn(ctx, a.opts, h)
	return a.current
}

// Current returns the most recently started turn, or nil.
func (a *Accumulator) Current() *Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Cancel cancels the current turn if it is still open.
func (a *Accumulator) Cancel() {
	a.mu.Lock()
	t := a.current
	a.mu.Unlock()
	if t != nil {
		t.Cancel()
	}
}
