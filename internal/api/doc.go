// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the persona chat backend.
//
// The backend exposes a handful of REST endpoints (personas, persona
// selection, quota stats, session history) and a chat endpoint that either
// streams Server-Sent Events or returns one JSON reply. Both chat paths feed
// a turn.Turn, so callers see the same render and terminal callbacks
// regardless of transport.
//
// # Key Types
//
//   - Client: pooled HTTP client with retry, pacing and size limits
//   - SSEReader: Server-Sent Events parser
//   - APIError: non-success response; errors.Is works with the sentinels
//
// # Usage
//
//	client := api.NewClient("http://localhost:8000").WithLogger(log)
//	t := acc.Start(ctx, handlers)
//	go client.StreamChat(ctx, api.ChatRequest{
//	    Message: "hi", Persona: "kabir", Username: "asha",
//	}, t)
//
// # Errors
//
// HTTP 429 wraps turn.ErrQuotaExceeded so the turn classifies it as
// quota-exceeded. Everything else that stops a turn is a transport error.
// Only idempotent GETs are retried.
package api
