// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jeranaias/personachat/internal/turn"
)

// =============================================================================
// STREAMING CONSTANTS (SSE transport feeding a turn.Turn)
// =============================================================================

// MaxEventSize is the maximum allowed size of one SSE event (64KB).
const MaxEventSize = 64 * 1024

// maxLineSize bounds one raw line: a full event payload plus its field name.
const maxLineSize = MaxEventSize + 64

// ErrEventTooLarge is returned when one SSE event exceeds MaxEventSize.
var ErrEventTooLarge = errors.New("sse event too large")

// =============================================================================
// SSE READER
// =============================================================================

// SSEEvent is one dispatched Server-Sent Event.
type SSEEvent struct {
	Type string
	ID   string
	Data []byte
}

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// Next reads the next event. Events without data lines are skipped.
// Returns io.EOF when the stream ends.
func (s *SSEReader) Next() (SSEEvent, error) {
	var ev SSEEvent
	var data [][]byte
	size := 0

	for {
		line, err := s.readLine()
		if errors.Is(err, ErrEventTooLarge) {
			return SSEEvent{}, err
		}
		if err != nil && !(err == io.EOF && len(line) > 0) {
			if err == io.EOF && len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return SSEEvent{}, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line dispatches the event.
		if len(line) == 0 {
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			ev = SSEEvent{}
			if err == io.EOF {
				return SSEEvent{}, io.EOF
			}
			continue
		}

		// Comment line
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}

		switch string(field) {
		case "event":
			ev.Type = string(value)
		case "data":
			size += len(value)
			if size > MaxEventSize {
				return SSEEvent{}, fmt.Errorf("%w: over %d bytes", ErrEventTooLarge, MaxEventSize)
			}
			data = append(data, append([]byte(nil), value...))
		case "id":
			ev.ID = string(value)
		}
		// retry: and unknown fields are ignored

		if err == io.EOF {
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return SSEEvent{}, io.EOF
		}
	}
}

// readLine reads through the next newline without buffering more than
// maxLineSize bytes of it.
func (s *SSEReader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := s.reader.ReadSlice('\n')
		if len(line)+len(chunk) > maxLineSize {
			return nil, fmt.Errorf("%w: line over %d bytes", ErrEventTooLarge, maxLineSize)
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StreamChat sends one message over the SSE endpoint and feeds every event
// into t. It returns once the turn is closed or the stream ends. The request
// is bound to t.Context(), so canceling the turn releases the connection;
// canceling ctx cancels the turn.
//
// The returned error is informational. The turn has already been told
// about any failure.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, t *turn.Turn) error {
	if err := req.validate(); err != nil {
		t.Fail(err)
		return err
	}
	stop := context.AfterFunc(ctx, t.Cancel)
	defer stop()

	q := url.Values{}
	q.Set("message", req.Message)
	q.Set("persona", req.Persona)
	q.Set("username", req.Username)

	httpReq, err := c.newRequest(t.Context(), http.MethodGet, "/chat?"+q.Encode(), nil)
	if err != nil {
		t.Fail(err)
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.do(c.streamClient, httpReq)
	if err != nil {
		t.Fail(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := handleErrorResponse(resp.StatusCode, body)
		t.Fail(err)
		return err
	}

	return c.processStream(resp.Body, t)
}

// processStream reads SSE events until the turn closes or the body ends.
func (c *Client) processStream(body io.Reader, t *turn.Turn) error {
	reader := NewSSEReader(body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				t.EndOfStream()
				return nil
			}
			if t.Context().Err() != nil {
				// canceled or already closed; nothing left to report
				return nil
			}
			err = fmt.Errorf("%w: %w", turn.ErrTransport, err)
			t.Fail(err)
			return err
		}

		t.Feed(ev.Data)
		if t.State() != turn.StateOpen {
			return nil
		}
	}
}

// =============================================================================
// SINGLE-SHOT CHAT
// =============================================================================

// SendChat is the non-streaming path. The whole reply is delivered to t as
// one chunk followed by completion.
func (c *Client) SendChat(ctx context.Context, req ChatRequest, t *turn.Turn) error {
	stop := context.AfterFunc(ctx, t.Cancel)
	defer stop()

	resp, err := c.Chat(t.Context(), req)
	if err != nil {
		t.Fail(err)
		return err
	}
	t.Complete(resp.Response, resp.RemainingMessages, resp.SessionID)
	return nil
}
