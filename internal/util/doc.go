// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the personachat packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - Preview: first N runes followed by "..." when the text is longer
//   - TruncateWidth, PadRight, StringWidth: terminal column aware helpers
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	display := util.Preview(persona.Personality, 100)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
