// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"encoding/json"
	"fmt"
)

// Kind is the tag of a stream event.
type Kind int

const (
	// KindUnknown is a tagged event this client does not understand.
	KindUnknown Kind = iota
	// KindChunk carries a text fragment to append.
	KindChunk
	// KindComplete closes the turn and carries the remaining quota.
	KindComplete
	// KindError closes the turn as failed.
	KindError
)

// String returns the wire tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindChunk:
		return "chunk"
	case KindComplete:
		return "complete"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one decoded payload from the backend stream.
type Event struct {
	Kind         Kind
	Tag          string // raw "type" value, kept for logging unknown tags
	Text         string
	Remaining    int
	HasRemaining bool
	SessionID    string
	Message      string

	// Legacy is set when a completion was inferred from an untagged payload.
	Legacy bool
}

// wireEvent mirrors the JSON the backend emits on each SSE data line.
type wireEvent struct {
	Type      string  `json:"type"`
	Response  *string `json:"response"`
	Remaining *int    `json:"remaining_messages"`
	SessionID *string `json:"session_id"`
	Error     *string `json:"error"`
}

// ParseEvent decodes one event payload.
//
// Tagged shapes:
//
//	{"type":"chunk","response":"Hel"}
//	{"type":"complete","remaining_messages":42,"session_id":"..."}
//	{"type":"error","error":"rate limited"}
//
// An untagged payload carrying remaining_messages or session_id is the older
// completion shape; it is returned as KindComplete with Legacy set when
// acceptLegacy is true. Anything else untagged is KindUnknown.
func ParseEvent(data []byte, acceptLegacy bool) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ev := Event{Tag: w.Type}
	if w.SessionID != nil {
		ev.SessionID = *w.SessionID
	}
	if w.Remaining != nil {
		ev.Remaining = *w.Remaining
		ev.HasRemaining = true
	}

	switch w.Type {
	case "chunk":
		ev.Kind = KindChunk
		if w.Response != nil {
			ev.Text = *w.Response
		}
	case "complete":
		ev.Kind = KindComplete
	case "error":
		ev.Kind = KindError
		if w.Error != nil {
			ev.Message = *w.Error
		}
	case "":
		if acceptLegacy && (w.SessionID != nil || w.Remaining != nil) {
			ev.Kind = KindComplete
			ev.Legacy = true
		}
	default:
		ev.Kind = KindUnknown
	}
	return ev, nil
}
