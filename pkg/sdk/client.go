// Package sdk is the client library for the robot-ops HTTP API.
package sdk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/pkg/errors"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("robot-ops: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Client talks to a robot-ops daemon. It implements RobotOps.
// Requests are sent once; failures are returned to the caller.
type Client struct {
	base *url.URL
	http *http.Client

	mu    sync.RWMutex // guards token
	token string
}

type Option func(*Client)

// WithToken authenticates every request with a previously issued token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithInsecureTLS accepts the daemon's self-signed certificate.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.http.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// Connect returns a client for addr. A bare host:port means plain http.
func Connect(addr string, opts ...Option) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(strings.TrimRight(addr, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse address %q", addr)
	}
	c := &Client{base: base, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the token in use, set either by WithToken or Login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// do sends one request and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decode response")
}

// decodeError reads either {"error": ...} or {"message": ...}.
func decodeError(status int, raw []byte) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			msg = payload.Error
		} else if payload.Message != "" {
			msg = payload.Message
		}
	}
	return &APIError{StatusCode: status, Message: msg}
}

func (c *Client) GetState(ctx context.Context, name string) (schema.StateRecord, error) {
	var rec schema.StateRecord
	err := c.do(ctx, http.MethodGet, "/state/getState/"+url.PathEscape(name), nil, &rec)
	return rec, err
}

func (c *Client) ListStates(ctx context.Context) ([]schema.StateRecord, error) {
	var recs []schema.StateRecord
	err := c.do(ctx, http.MethodGet, "/state/getAll", nil, &recs)
	return recs, err
}

func (c *Client) CreateState(ctx context.Context, req CreateStateRequest) (schema.StateRecord, error) {
	var rec schema.StateRecord
	err := c.do(ctx, http.MethodPost, "/state/createState", req, &rec)
	return rec, err
}

func (c *Client) UpdateState(ctx context.Context, name string, status schema.Status) (schema.StateRecord, error) {
	var rec schema.StateRecord
	in := map[string]schema.Status{"status": status}
	err := c.do(ctx, http.MethodPut, "/state/updateState/"+url.PathEscape(name), in, &rec)
	return rec, err
}

func (c *Client) DeleteState(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/state/deleteState/"+url.PathEscape(name), nil, nil)
}

// Summary fetches the combined report. Zero n and empty interval leave the
// server defaults in place.
func (c *Client) Summary(ctx context.Context, n int, interval string) (schema.Summary, error) {
	q := url.Values{}
	if n > 0 {
		q.Set("n", strconv.Itoa(n))
	}
	if interval != "" {
		q.Set("interval", interval)
	}
	path := "/state/summary"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var sum schema.Summary
	err := c.do(ctx, http.MethodGet, path, nil, &sum)
	return sum, err
}

func (c *Client) Register(ctx context.Context, email, name, password string) error {
	in := map[string]string{"email": email, "name": name, "password": password}
	return c.do(ctx, http.MethodPost, "/user/register", in, nil)
}

// Login stores the issued token on the client for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var out LoginResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/user/login", in, &out); err != nil {
		return out, err
	}
	c.setToken(out.Token)
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/user/logout", nil, nil); err != nil {
		return err
	}
	c.setToken("")
	return nil
}

func (c *Client) ModifyAccess(ctx context.Context, email string, access schema.Access) error {
	in := map[string]string{"email": email, "access": string(access)}
	return c.do(ctx, http.MethodPut, "/user/modify-access", in, nil)
}

func (c *Client) DeleteUser(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodDelete, "/user/delete-user", map[string]string{"email": email}, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]schema.UserAccount, error) {
	var users []schema.UserAccount
	err := c.do(ctx, http.MethodGet, "/user/view-all-users", nil, &users)
	return users, err
}

var _ RobotOps = (*Client)(nil)
