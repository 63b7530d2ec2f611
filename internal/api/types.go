// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength is the longest message the input accepts, in runes.
const MaxMessageLength = 500

// ChatRequest is one user message addressed to a persona.
type ChatRequest struct {
	Message  string `json:"message"`
	Persona  string `json:"persona"`
	Username string `json:"username"`
}

func (r ChatRequest) validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(r.Message); n > MaxMessageLength {
		return fmt.Errorf("%w: message is %d characters, limit is %d", ErrBadRequest, n, MaxMessageLength)
	}
	if r.Persona == "" || r.Username == "" {
		return fmt.Errorf("%w: username and persona required", ErrBadRequest)
	}
	return nil
}

// ChatResponse is the non-streaming reply.
type ChatResponse struct {
	Response          string `json:"response"`
	Persona           string `json:"persona"`
	TokenCount        int    `json:"token_count"`
	RemainingMessages int    `json:"remaining_messages"`
	SessionID         string `json:"session_id"`
}

// Selection is the reply to a persona selection.
type Selection struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Persona   string `json:"persona"`
	Message   string `json:"message"`
}

// UserStats is the user's quota as reported by the backend.
type UserStats struct {
	RemainingMessages int `json:"remaining_messages"`
	DailyLimit        int `json:"daily_limit"`
}

// SessionInfo is one chat session. Timestamps are kept as sent.
type SessionInfo struct {
	ID           string `json:"id" yaml:"id"`
	UserID       string `json:"user_id" yaml:"user_id"`
	Persona      string `json:"persona" yaml:"persona"`
	SessionStart string `json:"session_start,omitempty" yaml:"session_start,omitempty"`
	LastActivity string `json:"last_activity,omitempty" yaml:"last_activity,omitempty"`
	IsActive     bool   `json:"is_active" yaml:"is_active"`
}

// Started parses SessionStart, returning zero on failure.
func (s SessionInfo) Started() time.Time {
	return parseTimestamp(s.SessionStart)
}

// LastActive parses LastActivity, returning zero on failure.
func (s SessionInfo) LastActive() time.Time {
	return parseTimestamp(s.LastActivity)
}

// ConversationRecord is one recorded message/response pair.
type ConversationRecord struct {
	ID         string `json:"id" yaml:"id"`
	SessionID  string `json:"session_id" yaml:"session_id"`
	Persona    string `json:"persona" yaml:"persona"`
	Message    string `json:"message" yaml:"message"`
	Response   string `json:"response" yaml:"response"`
	TokenCount int    `json:"token_count" yaml:"token_count"`
	CreatedAt  string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Created parses CreatedAt, returning zero on failure.
func (c ConversationRecord) Created() time.Time {
	return parseTimestamp(c.CreatedAt)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
