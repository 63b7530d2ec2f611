// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "time"

// Role says who wrote a transcript line.
type Role int

const (
	RoleUser Role = iota
	RolePersona
	RoleSystem
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RolePersona:
		return "persona"
	case RoleSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Line is one entry in the visible conversation.
type Line struct {
	Role     Role      `json:"role" yaml:"role"`
	Persona  string    `json:"persona,omitempty" yaml:"persona,omitempty"`
	Text     string    `json:"text" yaml:"text"`
	At       time.Time `json:"at" yaml:"at"`
	Failed   bool      `json:"failed,omitempty" yaml:"failed,omitempty"`
	Canceled bool      `json:"canceled,omitempty" yaml:"canceled,omitempty"`
}

// appendLocked adds a line. Caller holds s.mu.
func (s *Session) appendLocked(l Line) {
	if l.At.IsZero() {
		l.At = time.Now()
	}
	s.transcript = append(s.transcript, l)
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Clear cancels any reply and empties the transcript, leaving only the
// persona's greeting when one is selected.
func (s *Session) Clear() {
	s.cancelPending()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	if s.persona != nil {
		s.appendLocked(Line{Role: RolePersona, Persona: s.persona.Key, Text: s.persona.Greeting()})
	}
}

// AddSystem appends a notice that is not part of the exchange.
func (s *Session) AddSystem(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(Line{Role: RoleSystem, Text: text})
}
