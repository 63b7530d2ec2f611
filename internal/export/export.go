// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/session"
	"github.com/jeranaias/personachat/internal/util"
)

// Message roles.
const (
	RoleUser    = "user"
	RolePersona = "persona"
	RoleSystem  = "system"
)

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("conversation has no messages")

// =============================================================================
// CONVERSATION
// =============================================================================

// Conversation is a format-neutral conversation ready for export.
type Conversation struct {
	SessionID string
	User      string
	Persona   string // key
	Title     string
	CreatedAt time.Time
	Messages  []Message
}

// Message is one line of a conversation.
type Message struct {
	Role       string
	Author     string
	Content    string
	Timestamp  time.Time
	TokenCount int
	Failed     bool
	Canceled   bool
}

// FromRecords builds a conversation from a session's recorded exchanges.
// names maps persona keys to display names; it may be nil.
func FromRecords(sessionID, user string, names *persona.Catalog, records []api.ConversationRecord) *Conversation {
	conv := &Conversation{SessionID: sessionID, User: user}
	for _, r := range records {
		at := r.Created()
		if conv.CreatedAt.IsZero() || (!at.IsZero() && at.Before(conv.CreatedAt)) {
			conv.CreatedAt = at
		}
		if conv.Persona == "" {
			conv.Persona = r.Persona
		}
		conv.Messages = append(conv.Messages,
			Message{Role: RoleUser, Author: user, Content: r.Message, Timestamp: at},
			Message{Role: RolePersona, Author: displayName(names, r.Persona), Content: r.Response,
				Timestamp: at, TokenCount: r.TokenCount},
		)
	}
	conv.Title = title(user, displayName(names, conv.Persona))
	return conv
}

// FromTranscript builds a conversation from a live session transcript.
func FromTranscript(user string, p persona.Persona, sessionID string, lines []session.Line) *Conversation {
	conv := &Conversation{
		SessionID: sessionID,
		User:      user,
		Persona:   p.Key,
		Title:     title(user, p.DisplayName()),
	}
	for _, l := range lines {
		m := Message{Content: l.Text, Timestamp: l.At, Failed: l.Failed, Canceled: l.Canceled}
		switch l.Role {
		case session.RoleUser:
			m.Role, m.Author = RoleUser, user
		case session.RolePersona:
			m.Role, m.Author = RolePersona, p.DisplayName()
		default:
			m.Role, m.Author = RoleSystem, "System"
		}
		if conv.CreatedAt.IsZero() {
			conv.CreatedAt = l.At
		}
		conv.Messages = append(conv.Messages, m)
	}
	return conv
}

func displayName(c *persona.Catalog, key string) string {
	if p, ok := c.Get(key); ok {
		return p.DisplayName()
	}
	if key == "" {
		return "Persona"
	}
	return key
}

func title(user, personaName string) string {
	if user == "" {
		return "Chat with " + personaName
	}
	return fmt.Sprintf("%s chatting with %s", user, personaName)
}

func (c *Conversation) validate() error {
	if c == nil {
		return errors.New("conversation is nil")
	}
	if len(c.Messages) == 0 {
		return ErrEmpty
	}
	return nil
}

// =============================================================================
// EXPORTERS
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format.
	Export(conv *Conversation) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the format.
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a header with session details.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark"). Default: "dark"
	Theme string

	// Now stamps the export footer. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
		Now:               time.Now,
	}
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Formats lists the accepted format names.
var Formats = []string{"md", "html"}

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want %s)", format, strings.Join(Formats, " or "))
	}
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

// WriteFile exports conv to path. An empty path picks a name in the
// current directory. Returns the path written.
func WriteFile(conv *Conversation, exporter Exporter, path string) (string, error) {
	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	if path == "" {
		path = Filename(conv, exporter, time.Now())
	}
	// SECURITY: transcripts are private; owner-only permissions.
	if err := util.AtomicWriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Filename returns the default file name for an export.
func Filename(conv *Conversation, exporter Exporter, at time.Time) string {
	base := conv.Persona
	if conv.SessionID != "" {
		base += "_" + conv.SessionID
	}
	return fmt.Sprintf("personachat_%s_%s%s", sanitizeFilename(base), at.Format("20060102_150405"), exporter.FileExtension())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(s, 50)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}

// formatTimestamp formats a timestamp for display, or "" when unknown.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04:05")
}

// annotation returns the note shown after a failed or stopped reply.
func (m Message) annotation() string {
	switch {
	case m.Failed:
		return "failed"
	case m.Canceled:
		return "stopped"
	}
	return ""
}
