// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persona holds the catalog of conversational personas offered by
// the backend, plus the client-side presentation for each (avatar, opening
// greeting, short personality preview).
//
// A persona key is opaque to the turn machinery; it is only forwarded to
// the backend with every message.
package persona
