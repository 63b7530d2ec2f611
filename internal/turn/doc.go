// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn accumulates the streamed response for one chat turn.
//
// A turn is one submitted message and the lifecycle of its reply. Events
// arrive from the backend stream (chunk, complete, error, or the older
// untagged completion shape), are applied strictly in arrival order, and
// drive two callbacks: a render callback that always receives the full
// accumulated text, and a terminal callback that fires at most once with
// either the remaining quota or a classified failure.
//
// # Key Types
//
//   - Accumulator: owns the single open Turn of a conversation
//   - Turn: the running buffer, state machine and inactivity timer
//   - Event: one decoded stream payload (see ParseEvent)
//   - Outcome / Failure: what the terminal callback receives
//
// # Usage
//
//	acc := turn.New(turn.DefaultOptions())
//	t := acc.Start(ctx, turn.Handlers{
//	    OnRender:   func(text string) { view.SetContent(text) },
//	    OnTerminal: func(o turn.Outcome) { ... },
//	})
//	client.StreamChat(t.Context(), req, t)
//
// Starting a new turn cancels the previous one. A canceled turn never
// invokes another callback.
package turn
