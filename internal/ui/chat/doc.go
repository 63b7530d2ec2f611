// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the interactive persona chat TUI.

The chat package implements the terminal interface using the Bubble Tea
framework. It walks the user through three screens: entering a username,
picking a persona and chatting. All conversation state lives in a
session.Session; the model only renders it and forwards input.

# Key Components

## Model (model.go)

The Model struct is the Bubble Tea model:
  - Screen state (username, personas, chat)
  - Input with a 500 character limit and a live counter
  - Viewport for the transcript
  - Typing spinner and toasts

## Update Loop (update.go)

Handles keyboard input, reply events, stream ticks, toasts and config
reloads. Replies arrive on a channel fed by the session's callbacks and
are turned into messages by a listening command.

## View Rendering (view.go)

  - Header with the persona's avatar and status line
  - Message bubbles for the user, the persona and system notices
  - Markdown rendering of finished replies
  - Status bar with the quota bar and key hints

## Streaming (streaming.go)

StreamingBuffer coalesces render callbacks so the transcript redraws at a
capped frame rate however fast chunks arrive.

# Usage

	m := chat.New(chat.Options{
	    Session:  sess,
	    Personas: client,
	    Config:   cfg,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
	    return err
	}
*/
package chat
