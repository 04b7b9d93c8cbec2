// Package api implements the gateway.Gateway interface over the TaskManager
// REST backend.
package api

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

	"taskman/internal/credstore"
	"taskman/internal/gateway"
	"taskman/internal/task"
)

// RequestTimeout is the per-call timeout.
const RequestTimeout = 5 * time.Second

// Client implements gateway.Gateway against a REST backend.
type Client struct {
	base  string
	hc    *http.Client
	creds *credstore.Store
}

// New creates a client for the backend at baseURL (including the version
// prefix, e.g. http://localhost:8000/api/v1). Credentials are read from and
// written to creds.
func New(baseURL string, creds *credstore.Store) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		hc:    &http.Client{},
		creds: creds,
	}
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(baseURL string, creds *credstore.Store, hc *http.Client) *Client {
	c := New(baseURL, creds)
	c.hc = hc
	return c
}

// ListTasks implements gateway.Gateway.
func (c *Client) ListTasks(ctx context.Context, params gateway.ListParams) ([]task.Task, error) {
	var out []task.Task
	if err := c.doJSON(ctx, http.MethodGet, "/tasks/", ListValues(params), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTask implements gateway.Gateway.
func (c *Client) GetTask(ctx context.Context, id string) (task.Task, error) {
	var out task.Task
	if err := c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return task.Task{}, err
	}
	return out, nil
}

// CreateTask implements gateway.Gateway.
func (c *Client) CreateTask(ctx context.Context, fields task.Fields) (task.Task, error) {
	var out task.Task
	if err := c.doJSON(ctx, http.MethodPost, "/tasks/", nil, fields, &out); err != nil {
		return task.Task{}, err
	}
	return out, nil
}

// UpdateTask implements gateway.Gateway.
func (c *Client) UpdateTask(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	var out task.Task
	if err := c.doJSON(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), nil, patch, &out); err != nil {
		return task.Task{}, err
	}
	return out, nil
}

// DeleteTask implements gateway.Gateway.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil)
}

// GetStatistics implements gateway.Gateway.
func (c *Client) GetStatistics(ctx context.Context) (task.Statistics, error) {
	var out task.Statistics
	if err := c.doJSON(ctx, http.MethodGet, "/tasks/statistics/summary", nil, nil, &out); err != nil {
		return task.Statistics{}, err
	}
	return out, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Login implements gateway.Gateway. The backend expects a form-encoded body.
// On success the token is written to the credential store before returning.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var tok tokenResponse
	if err := c.doForm(ctx, "/auth/login", form, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", &Error{Status: http.StatusOK, Detail: "login response missing token", Kind: gateway.ErrAuth}
	}
	if err := c.creds.Set(tok.AccessToken, username); err != nil {
		return "", fmt.Errorf("failed to save credentials: %w", err)
	}
	return tok.AccessToken, nil
}

// Register implements gateway.Gateway.
func (c *Client) Register(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.doJSON(ctx, http.MethodPost, "/auth/register", nil, body, nil)
}

// ExchangeAuthorizationCode implements gateway.Gateway. On success the token
// is written to the credential store before returning. The display name is
// left as stored; OAuth logins may not resolve one.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("code", code)

	var tok tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/yandex/callback", q, nil, &tok); err != nil {
		// A rejected exchange (e.g. an already-used code) is an auth
		// failure regardless of the HTTP status the backend chose.
		var apiErr *Error
		if errors.As(err, &apiErr) {
			apiErr.Kind = gateway.ErrAuth
		}
		return "", err
	}
	if tok.AccessToken == "" {
		return "", &Error{Status: http.StatusOK, Detail: "exchange response missing token", Kind: gateway.ErrAuth}
	}
	if err := c.creds.Set(tok.AccessToken, c.creds.Get().DisplayName); err != nil {
		return "", fmt.Errorf("failed to save credentials: %w", err)
	}
	return tok.AccessToken, nil
}

// ProviderConfig implements gateway.Gateway.
func (c *Client) ProviderConfig(ctx context.Context) (gateway.ProviderConfig, error) {
	var out gateway.ProviderConfig
	if err := c.doJSON(ctx, http.MethodGet, "/auth/yandex/config", nil, nil, &out); err != nil {
		return gateway.ProviderConfig{}, err
	}
	return out, nil
}

// Logout implements gateway.Gateway.
func (c *Client) Logout() error {
	return c.creds.Clear()
}

// ListValues encodes listing parameters as wire query values. Sort order is
// only transmitted when a sort field is set.
func ListValues(params gateway.ListParams) url.Values {
	q := url.Values{}
	if params.Status != "" {
		q.Set("status", string(params.Status))
	}
	if params.Search != "" {
		q.Set("search", params.Search)
	}
	if params.SortBy != "" {
		q.Set("sort_by", string(params.SortBy))
		if params.SortOrder != "" {
			q.Set("sort_order", string(params.SortOrder))
		}
	}
	return q
}

// noAuthPaths are endpoints that never carry the bearer token.
func noAuth(path string) bool {
	switch path {
	case "/auth/login", "/auth/register", "/auth/yandex/config", "/auth/yandex/callback":
		return true
	}
	return false
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, query, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) doForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	// Absence of a token is not an error here; the backend reports
	// authorization failures and they surface as ErrAuth.
	if !noAuth(path) {
		if cred := c.creds.Get(); cred.Present() {
			req.Header.Set("Authorization", "Bearer "+cred.Token)
		}
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	ctx, cancel := context.WithTimeout(req.Context(), RequestTimeout)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: request timed out", gateway.ErrNetwork)
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", gateway.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return newError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", gateway.ErrNetwork, err)
	}
	return nil
}
