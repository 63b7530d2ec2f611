// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

var (
	// ErrQuotaExceeded is the remote daily-limit signal (HTTP 429).
	// Transports wrap it so Turn.Fail can classify the failure.
	ErrQuotaExceeded = errors.New("daily message limit exceeded")

	// ErrTransport marks connection failures and non-success statuses.
	ErrTransport = errors.New("transport error")

	// ErrMalformedEvent marks a stream payload that could not be decoded.
	ErrMalformedEvent = errors.New("malformed stream event")

	// ErrRemote marks an explicit error event sent by the backend.
	ErrRemote = errors.New("remote error")

	// ErrStreamClosed is reported when the stream ends without a completion.
	ErrStreamClosed = errors.New("stream closed before completion")

	// ErrInactivity is reported when no event arrives within the timeout.
	ErrInactivity = errors.New("stream inactive")
)

// Class is the failure classification handed to the terminal callback.
type Class string

const (
	// ClassTransport covers connection drops, non-success statuses,
	// error events and inactivity.
	ClassTransport Class = "transport-error"

	// ClassQuota is the explicit daily-limit signal from the backend.
	ClassQuota Class = "quota-exceeded"
)

// User-visible messages. The partial buffer is never shown on failure.
const (
	MessageTrouble = "Oops! I'm having trouble responding right now. Please try again! 😅"
	MessageRemote  = "Oops! I encountered an error. Please try again! 😅"
	MessageQuota   = "Oh no! You've reached your daily message limit! 😅 Come back tomorrow for more amazing conversations! 🌅"
)

// Failure is a terminal failure for a turn.
type Failure struct {
	Class  Class
	Reason string // description from the backend, when it sent one
	Err    error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Reason != "" {
		return fmt.Sprintf("%s: %s", f.Class, f.Reason)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Class, f.Err)
	}
	return string(f.Class)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// UserMessage returns the fixed message to display instead of partial text.
func (f *Failure) UserMessage() string {
	switch {
	case f.Class == ClassQuota:
		return MessageQuota
	case errors.Is(f.Err, ErrRemote):
		return MessageRemote
	default:
		return MessageTrouble
	}
}

// Classify maps a transport error to a Failure.
func Classify(err error) *Failure {
	if errors.Is(err, ErrQuotaExceeded) {
		return &Failure{Class: ClassQuota, Err: err}
	}
	return &Failure{Class: ClassTransport, Err: err}
}
