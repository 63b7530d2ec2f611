// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/personachat/internal/turn"
)

// =============================================================================
// REST ENDPOINT TESTS
// =============================================================================

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	c = NewClient("http://example.test/api/")
	assert.Equal(t, "http://example.test/api", c.BaseURL())
}

func TestClient_ListPersonas(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/personas", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`{
			"kabir": {"name": "Kabir", "age": 16, "description": "Gamer", "personality": "Chill"},
			"aarohi": {"name": "Aarohi", "age": 15, "description": "Sweet", "personality": "Warm"}
		}`))
	}))

	cat, err := c.ListPersonas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"aarohi", "kabir"}, cat.Keys())
	p, ok := cat.Get("kabir")
	require.True(t, ok)
	assert.Equal(t, 16, p.Age)
	assert.Equal(t, "kabir", p.Key)
}

func TestClient_SelectPersona(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/persona/select", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "asha", body["username"])
		assert.Equal(t, "meher", body["persona"])
		w.Write([]byte(`{"success":true,"session_id":"s-77","persona":"meher","message":"Selected persona: meher"}`))
	}))

	sel, err := c.SelectPersona(context.Background(), "asha", "meher")
	require.NoError(t, err)
	assert.True(t, sel.Success)
	assert.Equal(t, "s-77", sel.SessionID)
}

func TestClient_StatsSessionsConversations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/asha/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"remaining_messages":12,"daily_limit":50}`))
	})
	mux.HandleFunc("/user/asha/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sessions":[{"id":"s1","user_id":"u1","persona":"kabir","is_active":true,
			"session_start":"2025-01-02T03:04:05.123456+00:00"}],"total_sessions":1}`))
	})
	mux.HandleFunc("/session/s1/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"conversations":[{"id":"c1","session_id":"s1","persona":"kabir",
			"message":"yo","response":"sup","token_count":9}],"total_messages":1}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	st, err := c.Stats(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, 12, st.RemainingMessages)
	assert.Equal(t, 50, st.DailyLimit)

	sessions, err := c.Sessions(ctx, "asha")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "kabir", sessions[0].Persona)
	assert.Equal(t, 2025, sessions[0].Started().Year())
	assert.True(t, sessions[0].LastActive().IsZero())

	convs, err := c.Conversations(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "sup", convs[0].Response)
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Persona Chatbot API is running"}`))
	}))
	msg, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Persona Chatbot API is running", msg)
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestHandleErrorResponse(t *testing.T) {
	tests := []struct {
		status int
		body   string
		target error
		detail string
	}{
		{429, `{"detail":"Daily message limit exceeded"}`, turn.ErrQuotaExceeded, "Daily message limit exceeded"},
		{404, `{"detail":"User not found"}`, ErrNotFound, "User not found"},
		{400, `{"detail":"Invalid persona"}`, ErrBadRequest, "Invalid persona"},
		{422, `{"detail":[{"loc":["body"],"msg":"field required"}]}`, ErrBadRequest, ""},
		{500, `Internal Server Error`, ErrServer, "Internal Server Error"},
		{418, ``, turn.ErrTransport, ""},
	}
	for _, tt := range tests {
		err := handleErrorResponse(tt.status, []byte(tt.body))
		assert.True(t, errors.Is(err, tt.target), "status %d: %v", tt.status, err)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, tt.status, apiErr.Status)
		if tt.detail != "" {
			assert.Equal(t, tt.detail, apiErr.Detail)
		}
	}
}

func TestHandleErrorResponse_LongDetailKeepsRunes(t *testing.T) {
	body := `{"detail":"` + strings.Repeat("€", 300) + `"}`
	err := handleErrorResponse(http.StatusBadRequest, []byte(body))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, utf8.ValidString(apiErr.Detail))
	assert.Equal(t, maxErrorDetail, utf8.RuneCountInString(apiErr.Detail))
	assert.True(t, strings.HasSuffix(apiErr.Detail, "..."))
}

func TestClient_Chat_QuotaExceeded(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail":"Daily message limit exceeded"}`))
	}))
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", Persona: "kabir", Username: "asha"})
	assert.True(t, errors.Is(err, turn.ErrQuotaExceeded))
}

func TestClient_Chat_Validation(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	_, err := c.Chat(context.Background(), ChatRequest{Message: "   ", Persona: "kabir", Username: "asha"})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = c.Chat(context.Background(), ChatRequest{Message: strings.Repeat("x", MaxMessageLength+1), Persona: "kabir", Username: "asha"})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = c.Chat(context.Background(), ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestClient_RetriesGETOn5xx(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"remaining_messages":3,"daily_limit":50}`))
	}))

	st, err := c.Stats(context.Background(), "asha")
	require.NoError(t, err)
	assert.Equal(t, 3, st.RemainingMessages)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	c.WithMaxRetries(2)

	_, err := c.Stats(context.Background(), "asha")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NoRetryOnPOST(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", Persona: "kabir", Username: "asha"})
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"User not found"}`))
	}))

	_, err := c.Sessions(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RateLimit(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	}))
	c.WithRateLimit(1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := c.Health(ctx)
	require.NoError(t, err)

	// second request must wait ~1s for a token and the deadline is shorter
	_, err = c.Health(ctx)
	require.Error(t, err)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, calculateBackoff(1))
	assert.Equal(t, time.Second, calculateBackoff(2))
	assert.Equal(t, 2*time.Second, calculateBackoff(3))
	assert.Equal(t, retryMaxDelay, calculateBackoff(10))
	assert.Equal(t, retryMaxDelay, calculateBackoff(80))
}

func TestReadResponse_SizeLimit(t *testing.T) {
	big := strings.Repeat("x", MaxResponseSize+10)
	resp := &http.Response{Body: http.NoBody}
	_, err := readResponse(resp)
	require.NoError(t, err)

	resp = &http.Response{Body: nopCloser{strings.NewReader(big)}}
	_, err = readResponse(resp)
	assert.Error(t, err)
}

type nopCloser struct{ *strings.Reader }

func (nopCloser) Close() error { return nil }
