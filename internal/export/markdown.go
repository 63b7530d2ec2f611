// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontmatter is the YAML header of a Markdown export.
type frontmatter struct {
	Title     string `yaml:"title"`
	User      string `yaml:"user,omitempty"`
	Persona   string `yaml:"persona,omitempty"`
	Session   string `yaml:"session,omitempty"`
	Date      string `yaml:"date,omitempty"`
	Messages  int    `yaml:"messages"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(conv *Conversation) ([]byte, error) {
	if err := conv.validate(); err != nil {
		return nil, err
	}
	now := e.options.now()

	var sb strings.Builder

	if e.options.IncludeMetadata {
		fm := frontmatter{
			Title:     conv.Title,
			User:      conv.User,
			Persona:   conv.Persona,
			Session:   conv.SessionID,
			Messages:  len(conv.Messages),
			Exported:  now.Format(time.RFC3339),
			Generator: "personachat",
		}
		if !conv.CreatedAt.IsZero() {
			fm.Date = conv.CreatedAt.Format(time.RFC3339)
		}
		head, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("frontmatter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(head)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Title))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		if conv.SessionID != "" {
			fmt.Fprintf(&sb, "- **Session**: %s\n", conv.SessionID)
		}
		if created := formatTimestamp(conv.CreatedAt); created != "" {
			fmt.Fprintf(&sb, "- **Started**: %s\n", created)
		}
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(conv.Messages))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")

	for i, msg := range conv.Messages {
		label := formatRoleLabel(msg)
		if ts := formatShortTimestamp(msg.Timestamp); e.options.IncludeTimestamps && ts != "" {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, ts)
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if content := strings.TrimSpace(msg.Content); content != "" {
			sb.WriteString(content)
			sb.WriteString("\n\n")
		}
		if note := msg.annotation(); note != "" {
			fmt.Fprintf(&sb, "*[%s]*\n\n", note)
		}
		if msg.Role == RolePersona && e.options.IncludeMetadata && msg.TokenCount > 0 {
			fmt.Fprintf(&sb, "<sub>Tokens: %d</sub>\n\n", msg.TokenCount)
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from personachat on %s*\n", now.Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// formatRoleLabel returns the heading for a message.
func formatRoleLabel(msg Message) string {
	author := msg.Author
	if author == "" {
		author = "Unknown"
	}
	return escapeMarkdown(author)
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only characters that would break formatting in titles and headings.
	return strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	).Replace(s)
}
