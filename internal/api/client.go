package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/nhle/shopfront/internal/logger"
)

// TokenSource supplies the bearer credential and clears it on a forced
// logout. credential.Vault implements it.
type TokenSource interface {
	Token() string
	Clear() error
}

// Client is a thin HTTP client for the storefront REST API.
// It attaches the bearer token on every request, performs the forced
// logout on 401, retries 429 with backoff and trips a circuit breaker
// when the backend keeps failing at the transport level.
type Client struct {
	baseURL        string
	tokens         TokenSource
	httpClient     *http.Client
	maxRetries     int
	breaker        *gobreaker.CircuitBreaker
	onUnauthorized func()
	log            *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithUnauthorizedHandler registers the hook run after a 401 has cleared
// the session, typically sending the user back to the login screen.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithMaxRetries sets how many times a 429 is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithBreakerSettings overrides the circuit breaker settings.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = newBreaker(st, c.log) }
}

// NewClient creates a new API client. The baseURL should be the root of
// the REST API (e.g., https://shop.example.com/api).
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrDefault(c.log)
	if c.breaker == nil {
		c.breaker = newBreaker(gobreaker.Settings{}, c.log)
	}
	return c
}

// newBreaker fills unset settings with defaults: trip after five
// consecutive transport or 5xx failures, probe again after 30s.
func newBreaker(st gobreaker.Settings, log *slog.Logger) *gobreaker.CircuitBreaker {
	if st.Name == "" {
		st.Name = "storefront-api"
	}
	if st.Timeout == 0 {
		st.Timeout = 30 * time.Second
	}
	if st.ReadyToTrip == nil {
		st.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	if st.IsSuccessful == nil {
		st.IsSuccessful = func(err error) bool {
			return err == nil || !isBackendFailure(err)
		}
	}
	if st.OnStateChange == nil && log != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		}
	}
	return gobreaker.NewCircuitBreaker(st)
}

// isBackendFailure reports whether err says the backend itself is
// unhealthy: a transport failure or a 5xx. Client errors are successes
// from the breaker's point of view.
func isBackendFailure(err error) bool {
	if IsAuthError(err) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Put performs an HTTP PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

// Patch performs an HTTP PATCH request with an optional JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, result)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, result)
}

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.roundTrip(ctx, method, path, payload)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return fmt.Errorf("%s %s: backend unavailable: %w", method, path, err)
			}
			return err
		}
		resp := out.(*response)

		if resp.status == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp.header, attempt)):
				continue
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.status == http.StatusNoContent || len(resp.body) == 0 {
			return nil
		}

		if err := json.Unmarshal(resp.body, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// roundTrip executes one attempt. 429 is returned as a response so the
// caller can retry it; every other non-2xx becomes an error.
func (c *Client) roundTrip(
	ctx context.Context,
	method string,
	path string,
	payload []byte,
) (*response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("reading response body: %w", readErr)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.forceLogout(method, path)
		return nil, &AuthError{Method: method, Path: path}

	case resp.StatusCode == http.StatusTooManyRequests:
		// Retried by the caller.

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &StatusError{
			Method:  method,
			Path:    path,
			Code:    resp.StatusCode,
			Message: errorMessage(respBody),
		}
	}

	return &response{
		status: resp.StatusCode,
		header: resp.Header,
		body:   respBody,
	}, nil
}

// forceLogout clears the persisted session and runs the unauthorized hook.
// There is no refresh flow; every 401 ends the session.
func (c *Client) forceLogout(method, path string) {
	c.log.Info("session expired, signing out", "method", method, "path", path)
	if err := c.tokens.Clear(); err != nil {
		c.log.Error("clearing session after 401", "error", err)
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// maxErrorMessage caps, in characters, a raw error body kept as a message.
const maxErrorMessage = 200

// errorMessage extracts a human-readable message from an error body.
func errorMessage(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if runes := []rune(msg); len(runes) > maxErrorMessage {
		msg = string(runes[:maxErrorMessage])
	}
	return msg
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(header http.Header, attempt int) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
