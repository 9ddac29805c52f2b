// Package api is the HTTP client for the remote expense service. It carries
// the session cookies, propagates the anti-forgery token on mutating
// requests and reports expired sessions as ErrUnauthorized.
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
	"net/url"
	"strings"
	"time"

	"github.com/cleared-dev/spend/internal/model"
)

const (
	// maxBodySize bounds how much of a response body is read.
	maxBodySize = 10 << 20
	// defaultTimeout applies when Config.Timeout is zero.
	defaultTimeout = 30 * time.Second
)

// Config describes the remote API and its anti-forgery conventions.
type Config struct {
	BaseURL            string
	CSRFHeader         string
	CSRFResponseHeader string
	CSRFCookie         string
	LogoutPath         string
	Registration       model.RegistrationVariant
	Timeout            time.Duration
	UserAgent          string
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport sets the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithJar sets the cookie jar, e.g. one restored from a saved session.
func WithJar(jar *Jar) Option {
	return func(c *Client) { c.jar = jar }
}

// WithTokenStore sets the anti-forgery token store.
func WithTokenStore(tokens *TokenStore) Option {
	return func(c *Client) { c.tokens = tokens }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client wraps all calls to the expense API. A Client belongs to one session.
type Client struct {
	cfg       Config
	baseURL   *url.URL
	http      *http.Client
	transport http.RoundTripper
	jar       *Jar
	tokens    *TokenStore
	logger    *slog.Logger
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.CSRFHeader == "" {
		cfg.CSRFHeader = "X-CSRF-Token"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Registration == "" {
		cfg.Registration = model.RegistrationSplit
	}

	c := &Client{cfg: cfg, baseURL: base}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = http.DefaultTransport
	}
	if c.jar == nil {
		c.jar = NewJar()
	}
	if c.tokens == nil {
		c.tokens = NewTokenStore("")
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "api")

	c.http = &http.Client{
		Transport: &csrfTransport{
			base:           c.transport,
			tokens:         c.tokens,
			requestHeader:  cfg.CSRFHeader,
			responseHeader: cfg.CSRFResponseHeader,
			cookieName:     cfg.CSRFCookie,
		},
		Jar:     c.jar,
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Host != base.Host {
				return fmt.Errorf("refusing redirect to %s", req.URL.Host)
			}
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
	return c, nil
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Jar returns the session's cookie jar.
func (c *Client) Jar() *Jar {
	return c.jar
}

// CSRFToken returns the current anti-forgery token.
func (c *Client) CSRFToken() string {
	return c.tokens.Get()
}

// SetCSRFToken overrides the anti-forgery token, for tokens that arrive
// outside a response header.
func (c *Client) SetCSRFToken(token string) {
	c.tokens.Set(token)
}

// ClearCSRFToken forgets the anti-forgery token.
func (c *Client) ClearCSRFToken() {
	c.tokens.Clear()
}

// ExpireCookie expires the named cookie client-side.
func (c *Client) ExpireCookie(name string) {
	c.jar.Expire(name)
}

// endpoint returns base + path with an optional query.
func (c *Client) endpoint(path string, query url.Values) *url.URL {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

// resolve turns a pagination link into a URL on the API host.
func (c *Client) resolve(link string) (*url.URL, error) {
	u, err := c.baseURL.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parsing link %q: %w", link, err)
	}
	if u.Host != c.baseURL.Host {
		return nil, fmt.Errorf("link %q leaves the API host", link)
	}
	return u, nil
}

// do sends one JSON request and decodes a 2xx body into out when non-nil.
func (c *Client) do(ctx context.Context, method string, u *url.URL, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, u.Path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, u.Path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("reading %s %s response: %w", method, u.Path, err)
	}

	c.logger.Debug("api request", "method", method, "path", u.Path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{
			Method:  method,
			Path:    u.Path,
			Status:  resp.StatusCode,
			Message: messageFrom(data),
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.logger.Info("session rejected by API", "method", method, "path", u.Path)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, u.Path, err)
	}
	return nil
}
