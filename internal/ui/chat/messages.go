// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/personachat/internal/config"
	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/turn"
)

// =============================================================================
// REPLY MESSAGES
// =============================================================================

// ReplyDoneMsg carries a turn's terminal outcome into the update loop.
type ReplyDoneMsg struct {
	ReplyID string
	Outcome turn.Outcome
}

// StreamTickMsg is sent at 30fps while a reply streams.
type StreamTickMsg struct {
	Time time.Time
}

// =============================================================================
// BACKEND MESSAGES
// =============================================================================

// PersonasLoadedMsg delivers the persona catalog.
type PersonasLoadedMsg struct {
	Catalog *persona.Catalog
	Err     error
}

// PersonaSelectedMsg reports that a persona was selected.
// Err is set only when the selection could not start at all.
type PersonaSelectedMsg struct {
	Persona  persona.Persona
	Greeting string
	Err      error
}

// StatsLoadedMsg reports a quota refresh from the stats endpoint.
type StatsLoadedMsg struct {
	Err error
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg is sent by the config watcher when the file changes.
// Err is set when the new file could not be loaded; Config is then nil.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}
