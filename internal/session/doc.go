// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds one user's conversation with a persona.
//
// A Session ties the pieces together: the username, the selected persona,
// the quota tracker, the transcript and the accumulator that turns a
// streamed reply into text. It is created by main and passed to the CLI
// or TUI; nothing here is global.
//
// # Key Types
//
//   - Session: identity, persona, transcript and the reply in flight
//   - Backend: the API calls a session makes (*api.Client)
//   - Line: one transcript entry
//   - Status: snapshot for status bars
//
// # Usage
//
//	s := session.New(client, session.DefaultOptions())
//	if err := s.SetUser("asha"); err != nil {
//	    return err
//	}
//	greeting, _ := s.SelectPersona(ctx, p)
//	t, err := s.Send(ctx, "hi!", turn.Handlers{
//	    OnRender:   func(text string) { draw(text) },
//	    OnTerminal: func(out turn.Outcome) { ... },
//	})
//	<-t.Done()
package session
