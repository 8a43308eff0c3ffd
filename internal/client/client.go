// Package client is the programmatic counterpart of the web app's auth
// context: it holds the current session, talks to the auth endpoints,
// and reacts to session loss.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// ErrOperationInFlight is returned when a login/logout/verify call is
// attempted while another one is still running.
var ErrOperationInFlight = errors.New("auth operation already in flight")

// requestTimeout bounds every auth call; the server is expected to
// answer well within it.
const requestTimeout = 10 * time.Second

// User mirrors the public user fields the server returns.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type apiEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	User    *User  `json:"user"`
}

// APIError carries the server's client-facing failure message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client is a session-aware HTTP client for the auth API. The session
// token travels in a cookie managed by the jar, matching the server's
// transport mode.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	user    *User
	loading bool

	// OnUnauthorized fires whenever the server answers 401 while a
	// session was held, after local state has been cleared. The web
	// client uses this to navigate back to the public area.
	OnUnauthorized func()
}

// New creates a client for the auth API at baseURL.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Jar:     jar,
			Timeout: requestTimeout,
		},
	}, nil
}

// CurrentUser returns the logged-in user, or nil.
func (c *Client) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Loading reports whether an auth operation is in flight; a UI can use
// it to disable duplicate submissions.
func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Login authenticates with the server and stores the resulting session.
// On failure the server's message is surfaced via *APIError.
func (c *Client) Login(ctx context.Context, creds Credentials) (*User, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	env, err := c.do(ctx, http.MethodPost, "/api/user/login", creds)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.user = env.User
	c.mu.Unlock()
	return env.User, nil
}

// Logout ends the session. Local state is cleared unconditionally, even
// when the network call fails: from the caller's perspective logout
// always succeeds.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	_, err := c.do(ctx, http.MethodPost, "/api/user/logout", nil)

	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()
	c.clearCookies()

	return err
}

// Verify asks the server whether the held session is still valid. Any
// failure resolves to no user; an absent session at startup is not an
// error condition.
func (c *Client) Verify(ctx context.Context) (*User, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	env, err := c.do(ctx, http.MethodGet, "/api/user/verify-token", nil)
	if err != nil {
		return nil, nil
	}

	c.mu.Lock()
	c.user = env.User
	c.mu.Unlock()
	return env.User, nil
}

func (c *Client) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return ErrOperationInFlight
	}
	c.loading = true
	return nil
}

func (c *Client) end() {
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
}

// do performs a request and decodes the response envelope. Any 401
// clears local session state and fires OnUnauthorized.
func (c *Client) do(ctx context.Context, method, path string, body any) (*apiEnvelope, error) {
	reqBody := &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && resp.StatusCode < 400 {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized()
	}

	if resp.StatusCode >= 400 {
		message := env.Message
		if message == "" {
			message = env.Error
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	return &env, nil
}

func (c *Client) handleUnauthorized() {
	c.mu.Lock()
	hadSession := c.user != nil
	c.user = nil
	c.mu.Unlock()

	if hadSession && c.OnUnauthorized != nil {
		c.OnUnauthorized()
	}
}

// clearCookies drops the session cookie by replacing the jar. The jar
// API has no delete, and a stale token must not outlive a logout.
func (c *Client) clearCookies() {
	if jar, err := cookiejar.New(nil); err == nil {
		c.http.Jar = jar
	}
}
