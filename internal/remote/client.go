// ABOUTME: Authenticated JSON client for the gym tracker REST API.
// ABOUTME: Attaches bearer tokens, refreshes once on 401 and signals a forced logout when that fails.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// maxResponseSize bounds response body reads.
const maxResponseSize int64 = 32 << 20

// credentialPaths answer 401 for bad credentials, not an expired token.
var credentialPaths = map[string]bool{
	"/auth/login":    true,
	"/auth/register": true,
	"/auth/refresh":  true,
}

// TokenStore persists the bearer credentials.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(access, refresh string) error
	ClearTokens() error
}

// Client talks to the remote service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	logger     *slog.Logger

	onLogout  func()
	onNetwork func(online bool)

	refreshMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger for auth and transport events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLogoutHandler registers fn to run after credentials are cleared by an
// unrecoverable 401.
func WithLogoutHandler(fn func()) Option {
	return func(c *Client) { c.onLogout = fn }
}

// WithNetworkObserver registers fn to receive transport-level online/offline
// signals: false after a transport failure, true after any response.
func WithNetworkObserver(fn func(online bool)) Option {
	return func(c *Client) { c.onNetwork = fn }
}

// New creates a client for baseURL (for example http://localhost:8000/api).
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = &MemoryTokens{}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticated reports whether an access token is available.
func (c *Client) Authenticated() bool {
	return c.tokens.AccessToken() != ""
}

func (c *Client) notifyNetwork(online bool) {
	if c.onNetwork != nil {
		c.onNetwork(online)
	}
}

// send performs one HTTP round trip with the current access token.
func (c *Client) send(ctx context.Context, method, url string, payload []byte, auth bool) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.notifyNetwork(false)
		return nil, &NetworkError{Op: method + " " + url, Err: err}
	}
	c.notifyNetwork(true)
	return resp, nil
}

// do sends a JSON request to path and decodes the response into out (if non-nil).
// A 401 on an authenticated call triggers one refresh and one retry.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	url := c.baseURL + path
	hadToken := c.tokens.AccessToken() != "" && !credentialPaths[path]
	resp, err := c.send(ctx, method, url, payload, !credentialPaths[path])
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && hadToken {
		drain(resp)
		if err := c.refresh(ctx); err != nil {
			if IsNetwork(err) {
				return err
			}
			c.forceLogout("refresh rejected")
			return ErrUnauthorized
		}
		resp, err = c.send(ctx, method, url, payload, true)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			c.forceLogout("retry after refresh rejected")
			return ErrUnauthorized
		}
	}
	defer drain(resp)

	return decodeResponse(resp, out)
}

// refresh exchanges the refresh token for a new pair. Concurrent callers
// share one refresh: whoever waits on the lock sees the new token.
func (c *Client) refresh(ctx context.Context) error {
	stale := c.tokens.AccessToken()
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if current := c.tokens.AccessToken(); current != "" && current != stale {
		return nil
	}
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return errors.New("no refresh token")
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, c.baseURL+"/auth/refresh", payload, false)
	if err != nil {
		return err
	}
	defer drain(resp)

	var pair TokenPair
	if err := decodeResponse(resp, &pair); err != nil {
		return err
	}
	if err := c.tokens.SetTokens(pair.AccessToken, pair.RefreshToken); err != nil {
		return fmt.Errorf("store refreshed tokens: %w", err)
	}
	c.logger.Debug("access token refreshed")
	return nil
}

// forceLogout clears credentials and fires the logout hook. Local data is kept.
func (c *Client) forceLogout(reason string) {
	if err := c.tokens.ClearTokens(); err != nil {
		c.logger.Warn("clear credentials failed", "error", err)
	}
	c.logger.Warn("forced logout", "reason", reason)
	if c.onLogout != nil {
		c.onLogout()
	}
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts "detail" or "message" from an error body, falling back to the status text.
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if len(body.Detail) > 0 {
			var s string
			if json.Unmarshal(body.Detail, &s) == nil {
				return s
			}
			return string(body.Detail)
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return http.StatusText(resp.StatusCode)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
}

// MemoryTokens is an in-process TokenStore.
type MemoryTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func (m *MemoryTokens) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access
}

func (m *MemoryTokens) RefreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh
}

func (m *MemoryTokens) SetTokens(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = access, refresh
	return nil
}

func (m *MemoryTokens) ClearTokens() error {
	return m.SetTokens("", "")
}
