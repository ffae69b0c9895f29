// Package client is the bearer-token transport for the contacts service.
// It maps response statuses to typed errors and never touches session state.
package client

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

	"contactdesk/internal/contacts"
	"contactdesk/internal/logging"
	"contactdesk/internal/session"
)

// maxBody caps how much of a response is read.
const maxBody = 16 << 20

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token() string
}

// Client talks to the contacts service.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for baseURL. tokens may be nil for unauthenticated use.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Identity is the caller as reported by /auth/me.
type Identity struct {
	Username string       `json:"username"`
	Role     session.Role `json:"role"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	auth        bool
}

// do performs req and returns the response body for 2xx statuses.
func (c *Client) do(ctx context.Context, req request) ([]byte, int, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.auth && c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		logging.TransportError("%s %s failed after %v: %v", req.method, req.path, time.Since(start), err)
		return nil, 0, &ServiceError{Method: req.method, Path: req.path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	logging.Transport("%s %s -> %d (%v, %d bytes)", req.method, req.path, resp.StatusCode, time.Since(start), len(data))
	if err != nil {
		return nil, resp.StatusCode, &ServiceError{Method: req.method, Path: req.path, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, resp.StatusCode, nil
	}

	detail := strings.TrimSpace(string(data))
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, resp.StatusCode, &AuthError{Method: req.method, Path: req.path, Detail: detail}
	case http.StatusForbidden:
		return nil, resp.StatusCode, &PermissionError{Method: req.method, Path: req.path, Detail: detail}
	}
	return nil, resp.StatusCode, &ServiceError{Method: req.method, Path: req.path, Status: resp.StatusCode, Detail: detail}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req := request{method: method, path: path, auth: true}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		req.body, req.contentType = body, "application/json"
	}
	data, _, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ServiceError{Method: method, Path: path, Status: http.StatusOK, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	data, _, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: body, contentType: "application/json"})
	if err != nil {
		if IsAuth(err) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil || lr.Token == "" {
		return "", &ServiceError{Method: http.MethodPost, Path: "/auth/login", Status: http.StatusOK, Detail: "login response carried no token", Err: err}
	}
	return lr.Token, nil
}

// Register creates a ROLE_USER account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	body, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	_, status, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: body, contentType: "application/json"})
	var se *ServiceError
	if errors.As(err, &se) && (status == http.StatusConflict || status == http.StatusBadRequest) {
		se.Err = ErrUserExists
	}
	return err
}

// Me returns the caller's username and role.
func (c *Client) Me(ctx context.Context) (Identity, error) {
	var id Identity
	err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &id)
	return id, err
}

// ListContacts fetches every contact visible to the caller.
func (c *Client) ListContacts(ctx context.Context) ([]contacts.Contact, error) {
	var list []contacts.Contact
	if err := c.doJSON(ctx, http.MethodGet, "/api/contacts", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateContact creates a contact owned by the caller.
func (c *Client) CreateContact(ctx context.Context, f contacts.Fields) (contacts.Contact, error) {
	var created contacts.Contact
	err := c.doJSON(ctx, http.MethodPost, "/api/contacts", f, &created)
	return created, err
}

// UpdateContact replaces the editable fields of contact id.
func (c *Client) UpdateContact(ctx context.Context, id contacts.ID, f contacts.Fields) (contacts.Contact, error) {
	var updated contacts.Contact
	err := c.doJSON(ctx, http.MethodPut, contactPath(id), f, &updated)
	return updated, err
}

// DeleteContact removes contact id.
func (c *Client) DeleteContact(ctx context.Context, id contacts.ID) error {
	_, _, err := c.do(ctx, request{method: http.MethodDelete, path: contactPath(id), auth: true})
	return err
}

// ExportJSON returns the raw JSON export, including server-owned fields.
func (c *Client) ExportJSON(ctx context.Context) ([]byte, error) {
	data, _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/contacts/export/json", auth: true})
	return data, err
}

// ExportXML returns the raw XML export, including server-owned fields.
func (c *Client) ExportXML(ctx context.Context) ([]byte, error) {
	data, _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/contacts/export/xml", auth: true})
	return data, err
}

// ImportJSON replaces the caller's contacts with records and returns the
// server's confirmation message.
func (c *Client) ImportJSON(ctx context.Context, records []contacts.Fields) (string, error) {
	if records == nil {
		records = []contacts.Fields{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	data, _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/contacts/import/json", body: body, contentType: "application/json", auth: true})
	return strings.TrimSpace(string(data)), err
}

// ImportXML replaces the caller's contacts from an XML document sent as is.
func (c *Client) ImportXML(ctx context.Context, payload []byte) (string, error) {
	data, _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/contacts/import/xml", body: payload, contentType: "application/xml", auth: true})
	return strings.TrimSpace(string(data)), err
}

func contactPath(id contacts.ID) string {
	return "/api/contacts/" + url.PathEscape(string(id))
}
