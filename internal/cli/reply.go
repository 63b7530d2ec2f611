// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// reply.go - Printing one persona reply in line mode.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jeranaias/personachat/internal/render"
	"github.com/jeranaias/personachat/internal/session"
	"github.com/jeranaias/personachat/internal/turn"
	"github.com/jeranaias/personachat/internal/util"
)

// ErrReplyStopped is returned when the user interrupts a reply.
var ErrReplyStopped = errors.New("reply stopped")

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes the growing reply as it arrives. Renders carry the
// whole text so far; only the part not yet printed is written.
type streamPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed string
}

func (p *streamPrinter) render(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.HasPrefix(text, p.printed) {
		fmt.Fprint(p.w, text[len(p.printed):])
	} else {
		// Not an extension of what is on screen; start over on a new line.
		fmt.Fprint(p.w, "\n"+text)
	}
	p.printed = text
}

func (p *streamPrinter) text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}

// =============================================================================
// RUNNING A TURN
// =============================================================================

// runReply sends text and blocks until the reply ends. When w is non-nil the
// reply is streamed to it. A receive on interrupt (or ctx ending) stops the
// reply and returns ErrReplyStopped.
func runReply(ctx context.Context, sess *session.Session, text string, w io.Writer, interrupt <-chan os.Signal) (turn.Outcome, *streamPrinter, error) {
	var printer *streamPrinter
	done := make(chan turn.Outcome, 1)
	h := turn.Handlers{
		OnTerminal: func(out turn.Outcome) { done <- out },
	}
	if w != nil {
		printer = &streamPrinter{w: w}
		h.OnRender = printer.render
	}

	if _, err := sess.Send(ctx, text, h); err != nil {
		return turn.Outcome{}, printer, err
	}

	select {
	case out := <-done:
		return out, printer, nil
	case <-interrupt:
		sess.Cancel()
		return turn.Outcome{}, printer, ErrReplyStopped
	case <-ctx.Done():
		sess.Cancel()
		return turn.Outcome{}, printer, ErrReplyStopped
	}
}

// finishReply replaces streamed text with the final rendering. On a
// terminal with markdown on, the raw lines are erased and the rendered
// reply printed in their place; otherwise the raw text stays.
func finishReply(w io.Writer, printer *streamPrinter, out turn.Outcome, md *render.Markdown) error {
	raw := ""
	if printer != nil {
		raw = printer.text()
	}

	if !out.OK() {
		if raw != "" {
			if isTerminalWriter(w) {
				clearLines(w, visualLines(raw, GetTerminalWidth()))
			} else {
				fmt.Fprintln(w)
			}
		}
		return out.Err
	}

	switch {
	case md != nil && md.Enabled():
		if raw != "" {
			clearLines(w, visualLines(raw, GetTerminalWidth()))
		}
		fmt.Fprintln(w, md.Render(out.Text))
	case raw == "":
		fmt.Fprintln(w, out.Text)
	case !strings.HasSuffix(raw, "\n"):
		fmt.Fprintln(w)
	}
	return nil
}

// visualLines counts the terminal rows text occupies at width, counting the
// row the cursor is on.
func visualLines(text string, width int) int {
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	rows := 0
	for _, line := range strings.Split(text, "\n") {
		w := util.StringWidth(line)
		if w == 0 {
			rows++
			continue
		}
		rows += (w + width - 1) / width
	}
	return rows
}
