package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/nhle/lms-client/internal/logging"
)

// DefaultTimeout bounds a request from connect through reading the response.
const DefaultTimeout = 10 * time.Second

// UnauthorizedHandler is told about every 401 on an authenticated request.
// token is the bearer token the failed request carried, or "" if none.
type UnauthorizedHandler interface {
	HandleUnauthorized(token string)
}

// Client is the single gateway for outbound LMS requests. It attaches the
// persisted bearer token to every request and routes 401 responses to the
// registered UnauthorizedHandler, or clears the token source itself when no
// handler is set. It never retries.
type Client struct {
	baseURL    string
	tokens     oauth2.TokenSource
	httpClient *http.Client
	logger     logging.Logger

	mu             sync.RWMutex
	onUnauthorized UnauthorizedHandler
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the API rooted at baseURL. tokens is consulted
// synchronously on every request; it may be nil for an anonymous client.
func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetUnauthorizedHandler registers the component told about 401s. It is
// set after construction because the session manager itself needs a Client.
func (c *Client) SetUnauthorizedHandler(h UnauthorizedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = h
}

// callOptions holds per-call settings.
type callOptions struct {
	anonymous bool
}

// CallOption customizes a single request.
type CallOption func(*callOptions)

// Anonymous marks a request that must not carry a token and whose 401 is
// an ordinary answer (login, registration) rather than a session failure.
func Anonymous() CallOption {
	return func(o *callOptions) { o.anonymous = true }
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
	opts ...CallOption,
) error {
	return c.do(ctx, http.MethodGet, path, nil, result, opts)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
	opts ...CallOption,
) error {
	return c.do(ctx, http.MethodPost, path, body, result, opts)
}

// Put performs an HTTP PUT request with a JSON body.
func (c *Client) Put(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
	opts ...CallOption,
) error {
	return c.do(ctx, http.MethodPut, path, body, result, opts)
}

// Patch performs an HTTP PATCH request with an optional JSON body.
func (c *Client) Patch(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
	opts ...CallOption,
) error {
	return c.do(ctx, http.MethodPatch, path, body, result, opts)
}

// Delete performs an HTTP DELETE request and unmarshals the JSON response.
func (c *Client) Delete(
	ctx context.Context,
	path string,
	result interface{},
	opts ...CallOption,
) error {
	return c.do(ctx, http.MethodDelete, path, nil, result, opts)
}

// bearer returns the token to attach, or nil when none is persisted.
func (c *Client) bearer() *oauth2.Token {
	if c.tokens == nil {
		return nil
	}
	tok, err := c.tokens.Token()
	if err != nil || tok == nil || tok.AccessToken == "" {
		return nil
	}
	return tok
}

// do is the core HTTP method that builds the request, attaches the bearer
// token, runs the 401 interceptor, and handles JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
	opts []CallOption,
) error {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	op := method + " " + path
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var sentToken string
	if !o.anonymous {
		if tok := c.bearer(); tok != nil {
			tok.SetAuthHeader(req)
			sentToken = tok.AccessToken
		}
	}

	c.logger.Debug("request %s %s id=%s auth=%t", method, path, requestID, sentToken != "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &Error{Kind: KindNetwork, Op: op, Message: "reading response body", Err: readErr}
	}

	if resp.StatusCode == http.StatusUnauthorized && !o.anonymous {
		c.intercept(sentToken, op)
		return &Error{
			Kind:    KindSessionExpired,
			Op:      op,
			Message: serverMessage(respBody),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    serverMessage(respBody),
			Body:       respBody,
		}
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &Error{
			Kind:    KindMalformedResponse,
			Op:      op,
			Message: "decoding response body",
			Err:     err,
		}
	}

	return nil
}

// intercept hands a 401 to the registered handler.
func (c *Client) intercept(token string, op string) {
	c.mu.RLock()
	h := c.onUnauthorized
	c.mu.RUnlock()

	c.logger.Warn("401 on %s; ending session", op)
	if h != nil {
		h.HandleUnauthorized(token)
		return
	}
	// Without a handler the client still drops the rejected token.
	if cl, ok := c.tokens.(tokenClearer); ok {
		if err := cl.Clear(); err != nil {
			c.logger.Error("clearing token store: %v", err)
		}
	}
}

// tokenClearer is implemented by token sources that can forget their token.
type tokenClearer interface {
	Clear() error
}

// serverMessage extracts the {"message": "..."} field Express handlers
// send with error responses.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
