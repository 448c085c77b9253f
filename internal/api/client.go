package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const userAgent = "ecoroute-go/0.1"

// TokenSource provides access tokens for outbound requests. Defined at the
// consumer (api package) per Go convention "accept interfaces, return
// structs". The session manager provides the real implementation.
//
// Token returns the current access token, refreshing it first if it is no
// longer believed valid. ForceRefresh discards the cached token and mints a
// new one; the client calls it exactly once after a 401 before retrying.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// Client is an authenticated HTTP client for the EcoRoute backend.
// It attaches the current access token to every request and performs a
// single forced refresh + retry when the backend rejects the token.
// Network failures are classified as ErrNetwork and never retried here —
// retry policy belongs to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a backend API client. baseURL is the API root, e.g.
// "https://backend.example.com/api". The http.Client should carry a bounded
// timeout so a hung request fails with ErrNetwork instead of blocking its
// caller indefinitely.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// Do executes an authenticated request against the backend. The path is
// appended to the client's base URL; a non-nil body is sent as JSON.
// The caller is responsible for closing the response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	tok, err := c.token.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("api: obtaining token: %w", err)
	}

	resp, err := c.doOnce(ctx, method, path, body, tok)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return c.finish(method, path, resp)
	}

	// Token rejected — exactly one forced refresh + retry. A second
	// rejection surfaces ErrUnauthorized; no further retries, preventing
	// refresh loops against a dead session.
	drainBody(resp)

	c.logger.Warn("token rejected, forcing refresh",
		slog.String("method", method),
		slog.String("path", path),
	)

	tok, err = c.token.ForceRefresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("api: refreshing rejected token: %w", err)
	}

	resp, err = c.doOnce(ctx, method, path, body, tok)
	if err != nil {
		return nil, err
	}

	return c.finish(method, path, resp)
}

// DoJSON executes a request and decodes a 2xx JSON response into out.
// A nil out discards the response body.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encoding request body: %w", err)
		}

		payload = data
	}

	resp, err := c.Do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decoding %s %s response: %w", method, path, err)
	}

	return nil
}

// doOnce executes a single HTTP request with the given token (no retry).
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, tok string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("api: request canceled: %w", ctx.Err())
		}

		return nil, netError(method+" "+path, err)
	}

	return resp, nil
}

// finish classifies a terminal response: 2xx passes through, everything
// else becomes an APIError with the matching sentinel.
func (c *Client) finish(method, path string, resp *http.Response) (*http.Response, error) {
	sentinel := classifyStatus(resp.StatusCode)
	if sentinel == nil {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	c.logger.Warn("request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return nil, &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(errBody),
		Err:        sentinel,
	}
}

// errorMessage extracts the backend's {"message": ...} field from an error
// body, falling back to the raw body.
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}

	return string(body)
}

// drainBody consumes and closes a response body so the connection can be
// reused for the retry.
func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
