// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a single HTML page with embedded CSS.
// Persona replies are rendered as Markdown; user text is shown verbatim.
type HTMLExporter struct {
	options  *Options
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options:  opts,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		// SECURITY: replies come from a remote model; never trust their HTML.
		policy: bluemonday.UGCPolicy(),
	}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(conv *Conversation) ([]byte, error) {
	if err := conv.validate(); err != nil {
		return nil, err
	}
	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(conv.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"personachat\">\n")
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(conv))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range conv.Messages {
		body, err := e.renderMessage(msg)
		if err != nil {
			return nil, err
		}
		sb.WriteString(body)
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>personachat</strong> on %s</p>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING
// =============================================================================

func (e *HTMLExporter) renderHeader(conv *Conversation) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(conv.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	meta := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>%s:</strong> %s</span>\n",
				label, html.EscapeString(value))
		}
	}
	meta("Session", conv.SessionID)
	meta("Started", formatTimestamp(conv.CreatedAt))
	meta("Messages", fmt.Sprint(len(conv.Messages)))
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderMessage(msg Message) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "            <div class=\"message %s-message\">\n", msg.Role)

	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(&sb, "                    <span class=\"role-label\">%s</span>\n", html.EscapeString(msg.Author))
	if ts := formatShortTimestamp(msg.Timestamp); e.options.IncludeTimestamps && ts != "" {
		fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", ts)
	}
	sb.WriteString("                </div>\n")

	content, err := e.formatContent(msg)
	if err != nil {
		return "", err
	}
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(content)
	sb.WriteString("                </div>\n")

	if note := msg.annotation(); note != "" {
		fmt.Fprintf(&sb, "                <div class=\"message-stats error\">[%s]</div>\n", note)
	} else if msg.Role == RolePersona && e.options.IncludeMetadata && msg.TokenCount > 0 {
		fmt.Fprintf(&sb, "                <div class=\"message-stats\">Tokens: %d</div>\n", msg.TokenCount)
	}

	sb.WriteString("            </div>\n")
	return sb.String(), nil
}

// formatContent renders persona replies as sanitized Markdown and everything
// else as escaped paragraphs.
func (e *HTMLExporter) formatContent(msg Message) (string, error) {
	if msg.Role != RolePersona {
		var sb strings.Builder
		for _, para := range strings.Split(strings.TrimSpace(msg.Content), "\n\n") {
			if para == "" {
				continue
			}
			escaped := strings.ReplaceAll(html.EscapeString(para), "\n", "<br>\n")
			fmt.Fprintf(&sb, "<p>%s</p>\n", escaped)
		}
		return sb.String(), nil
	}
	var buf bytes.Buffer
	if err := e.markdown.Convert([]byte(msg.Content), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return string(e.policy.SanitizeBytes(buf.Bytes())), nil
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
            --font-mono: "SF Mono", "Fira Code", "Source Code Pro", monospace;
        }
        .dark-theme {
            --bg-primary: #1a1b26; --bg-secondary: #24283b; --bg-tertiary: #414868;
            --text-primary: #c0caf5; --text-muted: #565f89; --border-color: #414868;
            --accent-user: #7aa2f7; --accent-persona: #bb9af7; --accent-system: #e0af68; --accent-red: #f7768e;
        }
        .light-theme {
            --bg-primary: #ffffff; --bg-secondary: #f7f8fa; --bg-tertiary: #e1e4e8;
            --text-primary: #24292e; --text-muted: #6a737d; --border-color: #e1e4e8;
            --accent-user: #0366d6; --accent-persona: #6f42c1; --accent-system: #b08800; --accent-red: #d73a49;
        }
        body {
            font-family: var(--font-sans); line-height: 1.6; padding: 20px;
            color: var(--text-primary); background: var(--bg-primary);
        }
        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
        .header { padding: 32px; background: var(--bg-tertiary); }
        .header h1 { font-size: 26px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; }
        .conversation { padding: 24px 32px; }
        .message { margin-bottom: 20px; padding: 16px 20px; border-radius: 8px; border-left: 4px solid transparent; }
        .user-message { border-left-color: var(--accent-user); }
        .persona-message { border-left-color: var(--accent-persona); }
        .system-message { border-left-color: var(--accent-system); font-style: italic; }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 8px; font-size: 14px; }
        .role-label { font-weight: 600; }
        .timestamp, .message-stats { color: var(--text-muted); font-size: 13px; font-family: var(--font-mono); }
        .message-stats { margin-top: 8px; }
        .message-content p { margin-bottom: 10px; }
        .message-content pre { padding: 12px; overflow-x: auto; background: var(--bg-primary); border-radius: 6px; }
        .message-content code { font-family: var(--font-mono); font-size: 14px; }
        .error { color: var(--accent-red); }
        .footer { padding: 16px 32px; text-align: center; font-size: 14px; color: var(--text-muted); }
        @media print { .message { page-break-inside: avoid; } }
    </style>
`

// Compile-time interface checks.
var (
	_ Exporter = (*MarkdownExporter)(nil)
	_ Exporter = (*HTMLExporter)(nil)
)
