// Package identity wraps the hosted identity provider's admin REST API.
// The provider exclusively owns account lifecycle and credentials; this
// client only forwards privileged operations using the service-role key.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"littlelungs.org/internal/obs"
)

const defaultTimeout = 10 * time.Second

// ErrNotFound indicates the provider has no account for the given id.
var ErrNotFound = errors.New("identity: account not found")

// Error carries an upstream failure with the provider's own message so
// operators can diagnose it from the API response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity provider returned status %d", e.Status)
	}
	return e.Message
}

// Account is the provider's authentication record.
type Account struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Confirmed bool           `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"user_metadata"`
}

// CreateAccountParams describes a direct account creation with an
// immediate password. Confirm skips the email confirmation step, used
// when an admin creates the account on the user's behalf.
type CreateAccountParams struct {
	Email    string
	Password string
	Confirm  bool
	Metadata map[string]any
}

// LinkType selects the action-link flavor generated by the provider.
type LinkType string

const (
	LinkInvite   LinkType = "invite"
	LinkRecovery LinkType = "recovery"
)

// LinkParams describes an action-link generation request. The provider
// emails the link itself; RedirectTo is where the user lands afterwards.
type LinkParams struct {
	Type       LinkType
	Email      string
	RedirectTo string
	Metadata   map[string]any
}

// Client talks to the identity provider. Construct it once at startup and
// inject it; it holds no mutable state beyond the HTTP client.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests, custom
// timeouts).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient constructs a provider client with a default 10s timeout.
func NewClient(baseURL, serviceKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateAccount registers a new account, optionally pre-confirmed and with
// an immediate password.
func (c *Client) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	body := map[string]any{
		"email":         params.Email,
		"email_confirm": params.Confirm,
	}
	if params.Password != "" {
		body["password"] = params.Password
	}
	if len(params.Metadata) > 0 {
		body["user_metadata"] = params.Metadata
	}
	var acc accountPayload
	if err := c.do(ctx, "create_account", http.MethodPost, "/admin/users", body, &acc); err != nil {
		return Account{}, err
	}
	return acc.toAccount(), nil
}

// GenerateLink asks the provider to generate and email an action link
// (invite or recovery) for the given address.
func (c *Client) GenerateLink(ctx context.Context, params LinkParams) error {
	body := map[string]any{
		"type":  string(params.Type),
		"email": params.Email,
	}
	if params.RedirectTo != "" {
		body["redirect_to"] = params.RedirectTo
	}
	if len(params.Metadata) > 0 {
		body["data"] = params.Metadata
	}
	return c.do(ctx, "generate_link", http.MethodPost, "/admin/generate_link", body, nil)
}

// GetAccount fetches an account by id. A missing account is reported as
// ErrNotFound, distinct from other upstream failures.
func (c *Client) GetAccount(ctx context.Context, id string) (Account, error) {
	var acc accountPayload
	if err := c.do(ctx, "get_account", http.MethodGet, "/admin/users/"+url.PathEscape(id), nil, &acc); err != nil {
		return Account{}, err
	}
	return acc.toAccount(), nil
}

// UpdatePassword overwrites the account's password credential.
func (c *Client) UpdatePassword(ctx context.Context, id, password string) error {
	body := map[string]any{"password": password}
	return c.do(ctx, "update_password", http.MethodPut, "/admin/users/"+url.PathEscape(id), body, nil)
}

// DeleteAccount removes the account permanently.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, "delete_account", http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil)
}

// LookupByEmail reports whether an account exists for the address using
// the admin list endpoint's email filter, avoiding a full account scan.
func (c *Client) LookupByEmail(ctx context.Context, email string) (Account, bool, error) {
	var payload struct {
		Users []accountPayload `json:"users"`
	}
	path := "/admin/users?email=" + url.QueryEscape(email)
	if err := c.do(ctx, "lookup_by_email", http.MethodGet, path, nil, &payload); err != nil {
		return Account{}, false, err
	}
	for _, u := range payload.Users {
		if strings.EqualFold(u.Email, email) {
			return u.toAccount(), true, nil
		}
	}
	return Account{}, false, nil
}

// VerifyPassword exchanges credentials through the provider's password
// grant. Invalid credentials surface as ErrNotFound so callers cannot
// distinguish a wrong password from an unknown address.
func (c *Client) VerifyPassword(ctx context.Context, email, password string) (Account, error) {
	body := map[string]any{"email": email, "password": password}
	var payload struct {
		User accountPayload `json:"user"`
	}
	err := c.do(ctx, "verify_password", http.MethodPost, "/token?grant_type=password", body, &payload)
	if err != nil {
		var upstream *Error
		if errors.As(err, &upstream) && (upstream.Status == http.StatusBadRequest || upstream.Status == http.StatusUnauthorized) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return payload.User.toAccount(), nil
}

// do executes one provider call. Every call is treated as fallible and
// network-bound; non-2xx responses are decoded into *Error, with 404 on
// account resources mapped to ErrNotFound.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	defer func() { obs.ObserveIdentityCall(op, err) }()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
		Err     string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Msg != "":
			msg = payload.Msg
		case payload.Message != "":
			msg = payload.Message
		case payload.Err != "":
			msg = payload.Err
		}
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}

// accountPayload mirrors the provider's account JSON.
type accountPayload struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt string         `json:"email_confirmed_at"`
	CreatedAt        time.Time      `json:"created_at"`
	Metadata         map[string]any `json:"user_metadata"`
}

func (p accountPayload) toAccount() Account {
	return Account{
		ID:        p.ID,
		Email:     p.Email,
		Confirmed: p.EmailConfirmedAt != "",
		CreatedAt: p.CreatedAt,
		Metadata:  p.Metadata,
	}
}
