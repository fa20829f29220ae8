// Package rest is the HTTP JSON store.Client for the platform's generic
// table API:
//
//	GET    {base}/{table}
//	POST   {base}/{table}
//	PATCH  {base}/{table}/{id}
//	DELETE {base}/{table}/{id}
//
// Requests carry a bearer token. Non-success responses become
// *store.Error values carrying the response's "detail" field.
package rest

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

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is read for its detail.
const maxErrorBody = 1 << 20

// Config configures a Client.
type Config struct {
	BaseURL string // e.g. https://platform.example.com/api
	Token   string // bearer token; empty sends no Authorization header
	Timeout time.Duration

	// RequestsPerSecond paces outgoing calls. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	// OnUnauthorized is called on a 401 before ErrSessionExpired is
	// returned. The authentication layer uses it to end the session.
	OnUnauthorized func()

	// HTTPClient is the base client; nil uses a client with Timeout.
	HTTPClient *http.Client
}

// Client talks to the table API.
type Client struct {
	base           *url.URL
	http           *http.Client
	limiter        *rate.Limiter
	timeout        time.Duration
	onUnauthorized func()
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rest: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("rest: base URL must be http or https, got %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Token,
			TokenType:   "Bearer",
		}))
	}

	c := &Client{
		base:           base,
		http:           hc,
		timeout:        timeout,
		onUnauthorized: cfg.OnUnauthorized,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// endpoint builds {base}/{table}[/{identity}] with each segment escaped,
// so an identity containing "/" cannot address another resource.
func (c *Client) endpoint(table, identity string) string {
	raw := c.base.EscapedPath() + "/" + url.PathEscape(table)
	if identity != "" {
		raw += "/" + url.PathEscape(identity)
	}
	u := *c.base
	u.RawPath = raw
	u.Path, _ = url.PathUnescape(raw)
	return u.String()
}

func (c *Client) List(ctx context.Context, table string) ([]store.Row, error) {
	var rows []store.Row
	if err := c.do(ctx, "list", table, http.MethodGet, c.endpoint(table, ""), nil, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		store.NormalizeRow(r)
	}
	return rows, nil
}

func (c *Client) Create(ctx context.Context, table string, fields store.Row) (store.Row, error) {
	var row store.Row
	if err := c.do(ctx, "create", table, http.MethodPost, c.endpoint(table, ""), fields, &row); err != nil {
		return nil, err
	}
	return store.NormalizeRow(row), nil
}

func (c *Client) Update(ctx context.Context, table, identity string, fields store.Row) (store.Row, error) {
	var row store.Row
	if err := c.do(ctx, "update", table, http.MethodPatch, c.endpoint(table, identity), fields, &row); err != nil {
		return nil, err
	}
	return store.NormalizeRow(row), nil
}

func (c *Client) Delete(ctx context.Context, table, identity string) error {
	return c.do(ctx, "delete", table, http.MethodDelete, c.endpoint(table, identity), nil, nil)
}

func (c *Client) do(ctx context.Context, op, table, method, target string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return store.Transport(op, table, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return store.Transport(op, table, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return store.Transport(op, table, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return store.Transport(op, table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return &store.Error{
			Kind:   store.KindRejected,
			Op:     op,
			Table:  table,
			Status: resp.StatusCode,
			Detail: "Session expired",
			Err:    store.ErrSessionExpired,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return store.Rejected(op, table, resp.StatusCode, parseDetail(raw))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return store.Transport(op, table, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// parseDetail extracts a human-readable message from an error body.
// The API sends {"detail": "..."}; validation failures send a list of
// {"msg": "..."} objects instead.
func parseDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

var _ store.Client = (*Client)(nil)
