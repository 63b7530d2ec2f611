// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer coalesces render callbacks between frames.
//
// The accumulator hands over the full text so far on every chunk, so only
// the latest value matters. Set is called from the transport goroutine;
// Flush runs in the Bubble Tea loop at a capped frame rate. A flush returns
// content only when something new arrived since the previous one.
//
// Thread-safety: all operations are protected by a mutex.
type StreamingBuffer struct {
	mu        sync.Mutex
	turnID    string
	text      string
	version   uint64
	flushed   uint64
	lastFlush time.Time

	maxFPS     int
	minFlushMs time.Duration
}

// DefaultStreamFPS is the default render rate while a reply streams.
const DefaultStreamFPS = 30

// NewStreamingBuffer creates a buffer rendering at DefaultStreamFPS.
func NewStreamingBuffer() *StreamingBuffer {
	return NewStreamingBufferWithFPS(DefaultStreamFPS)
}

// NewStreamingBufferWithFPS creates a buffer with a custom frame rate.
// Values outside 1..60 fall back to DefaultStreamFPS.
func NewStreamingBufferWithFPS(maxFPS int) *StreamingBuffer {
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = DefaultStreamFPS
	}
	return &StreamingBuffer{
		maxFPS:     maxFPS,
		minFlushMs: time.Second / time.Duration(maxFPS),
	}
}

// Begin starts buffering for a new turn and drops anything left over.
func (sb *StreamingBuffer) Begin(turnID string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.turnID = turnID
	sb.text = ""
	sb.version = 0
	sb.flushed = 0
	sb.lastFlush = time.Time{}
}

// Set records the latest text for turnID. Text for any other turn is
// dropped, so a late render from a replaced reply never shows up.
func (sb *StreamingBuffer) Set(turnID, text string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if turnID != sb.turnID {
		return
	}
	sb.text = text
	sb.version++
}

// Flush returns the latest text if it changed and the frame interval has
// passed since the previous flush.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.version == sb.flushed {
		return "", false
	}
	if time.Since(sb.lastFlush) < sb.minFlushMs {
		return "", false
	}
	return sb.flushLocked(), true
}

// ForceFlush returns the latest text if it changed, ignoring the frame cap.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.version == sb.flushed {
		return "", false
	}
	return sb.flushLocked(), true
}

func (sb *StreamingBuffer) flushLocked() string {
	sb.flushed = sb.version
	sb.lastFlush = time.Now()
	return sb.text
}

// Reset forgets the current turn.
func (sb *StreamingBuffer) Reset() {
	sb.Begin("")
}

// FrameInterval returns the minimum time between flushes.
func (sb *StreamingBuffer) FrameInterval() time.Duration {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.minFlushMs
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd sends StreamTickMsg once per frame interval while a reply
// streams.
func streamTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
