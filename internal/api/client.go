// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/turn"
	"github.com/jeranaias/personachat/internal/util"
)

// Configuration constants for the persona chat backend.
const (
	// DefaultBaseURL is where the backend listens in local development.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of attempts for idempotent GETs.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBody caps how much of an error body is read for the detail.
	maxErrorBody = 64 * 1024

	// maxErrorDetail caps APIError.Detail, in runes.
	maxErrorDetail = 200
)

// DefaultUserAgent is sent unless WithUserAgent overrides it.
const DefaultUserAgent = "personachat"

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Every client shares this transport; only timeouts differ.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// Error variables for common backend errors.
var (
	// ErrBadRequest indicates the backend rejected the request (HTTP 400).
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound indicates an unknown user, session or route (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("server error")

	// ErrEmptyMessage is returned before sending a blank message.
	ErrEmptyMessage = errors.New("message is empty")
)

// APIError is a non-success response from the backend.
type APIError struct {
	Status int
	Detail string
	kind   error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// Unwrap exposes the sentinel for the status class, so errors.Is works with
// ErrNotFound, ErrServer or turn.ErrQuotaExceeded.
func (e *APIError) Unwrap() error {
	return e.kind
}

// Client talks to the persona chat backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	userAgent    string
	log          zerolog.Logger
}

// NewClient creates a client for the backend at baseURL.
// An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		// No timeout for streaming; the turn context and inactivity timer bound it.
		streamClient: &http.Client{Transport: sharedTransport},
		limiter:      rate.NewLimiter(rate.Inf, 0),
		maxRetries:   DefaultMaxRetries,
		userAgent:    DefaultUserAgent,
		log:          zerolog.Nop(),
	}
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithMaxRetries sets the attempt count for idempotent GETs.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	c.maxRetries = maxRetries
	return c
}

// WithRateLimit paces outgoing requests. rps <= 0 disables pacing.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the logger for request tracing.
func (c *Client) WithLogger(log zerolog.Logger) *Client {
	c.log = log
	return c
}

// WithHTTPClient replaces both the regular and streaming HTTP clients.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamClient = hc
	return c
}

// WithUserAgent overrides the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Health checks that the backend is reachable and returns its banner.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.getJSON(ctx, "/", &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ListPersonas fetches the persona catalog.
func (c *Client) ListPersonas(ctx context.Context) (*persona.Catalog, error) {
	var m map[string]persona.Persona
	if err := c.getJSON(ctx, "/personas", &m); err != nil {
		return nil, err
	}
	return persona.NewCatalog(m), nil
}

// SelectPersona registers the user's persona choice and returns the
// backend session that subsequent messages attach to.
func (c *Client) SelectPersona(ctx context.Context, username, personaKey string) (*Selection, error) {
	body := map[string]string{"username": username, "persona": personaKey}
	var sel Selection
	if err := c.postJSON(ctx, "/persona/select", body, &sel); err != nil {
		return nil, err
	}
	return &sel, nil
}

// Stats fetches the user's remaining quota.
func (c *Client) Stats(ctx context.Context, username string) (*UserStats, error) {
	var st UserStats
	if err := c.getJSON(ctx, "/user/"+url.PathEscape(username)+"/stats", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Sessions lists the user's chat sessions, most recent first.
func (c *Client) Sessions(ctx context.Context, username string) ([]SessionInfo, error) {
	var resp struct {
		Sessions []SessionInfo `json:"sessions"`
		Total    int           `json:"total_sessions"`
	}
	if err := c.getJSON(ctx, "/user/"+url.PathEscape(username)+"/sessions", &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Conversations lists the exchanges recorded for a session, oldest first.
func (c *Client) Conversations(ctx context.Context, sessionID string) ([]ConversationRecord, error) {
	var resp struct {
		Conversations []ConversationRecord `json:"conversations"`
		Total         int                  `json:"total_messages"`
	}
	if err := c.getJSON(ctx, "/session/"+url.PathEscape(sessionID)+"/conversations", &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// Chat sends one message and waits for the whole reply.
// Chat requests are never retried: a retry is a new user-initiated turn.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var resp ChatResponse
	if err := c.postJSON(ctx, "/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// do waits for the rate limiter and sends the request once.
func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: %v", turn.ErrTransport, err)
	}

	// Log method and path only; query strings carry message text.
	start := time.Now()
	c.log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("request")

	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", turn.ErrTransport, err)
	}
	c.log.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).
		Str("path", req.URL.Path).Msg("response")
	return resp, nil
}

// doWithRetry retries idempotent requests on network errors and 5xx.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt)
			c.log.Debug().Int("attempt", attempt+1).Dur("delay", delay).Err(lastErr).Msg("retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.do(c.httpClient, req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			lastErr = handleErrorResponse(resp.StatusCode, body)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateBackoff returns the delay before the next retry: 500ms, 1s, 2s...
func calculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	if attempt > 8 {
		return retryMaxDelay
	}
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// readResponse reads the body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", turn.ErrTransport, err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	body, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return handleErrorResponse(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// handleErrorResponse converts a non-success status into an *APIError.
// The backend reports errors as {"detail": "..."}.
func handleErrorResponse(statusCode int, body []byte) error {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	detail := ""
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Detail) > 0 {
		var s string
		if json.Unmarshal(parsed.Detail, &s) == nil {
			detail = s
		} else {
			detail = string(parsed.Detail)
		}
	} else {
		detail = strings.TrimSpace(string(body))
	}
	detail = util.TruncateRunes(detail, maxErrorDetail)

	e := &APIError{Status: statusCode, Detail: detail}
	switch {
	case statusCode == http.StatusTooManyRequests:
		e.kind = turn.ErrQuotaExceeded
	case statusCode == http.StatusNotFound:
		e.kind = ErrNotFound
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		e.kind = ErrBadRequest
	case statusCode >= 500:
		e.kind = ErrServer
	default:
		e.kind = turn.ErrTransport
	}
	return e
}
