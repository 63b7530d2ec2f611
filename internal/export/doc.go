// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes persona conversations to Markdown or HTML.
//
// A Conversation is built either from the backend's recorded exchanges for
// a session (FromRecords) or from the live transcript of a chat
// (FromTranscript). Nothing is stored locally; export happens on request.
//
// # Key Types
//
//   - Conversation / Message: Format-neutral conversation
//   - Exporter: Renders a Conversation to bytes
//   - Options: Metadata, timestamps and HTML theme
//
// # Usage
//
//	conv := export.FromRecords("s1", "alice", names, records)
//	exp, err := export.ForFormat("md", export.DefaultOptions())
//	path, err := export.WriteFile(conv, exp, "")
package export
