// Package transport provides the raw HTTP access the client performs against
// a portal. It owns nothing but the wire: base-URL resolution, the per-client
// cookie store, and request timeouts. Response interpretation lives with the
// caller.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every portal request.
const DefaultTimeout = 30 * time.Second

// Transport is the portal access boundary the client depends on. Both calls
// return the response status code and body; a non-nil error means the request
// itself failed (network error, unreachable host), not that the portal
// answered with an unexpected page.
type Transport interface {
	// PostForm submits a form to the path resolved against the portal base.
	PostForm(ctx context.Context, path string, fields url.Values) (status int, body string, err error)
	// Get fetches the path resolved against the portal base.
	Get(ctx context.Context, path string) (status int, body string, err error)
	// ResetSession discards the cookie store so the next login starts from a
	// clean session.
	ResetSession() error
}

// Option customises an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPClient) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithRoundTripper swaps the underlying round tripper, used by tests.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(t *HTTPClient) {
		if rt != nil {
			t.roundTripper = rt
		}
	}
}

// WithAllowedHosts permits absolute request URLs for the named hosts. Portals
// spanning more than one host behind a single session need this; everything
// else stays confined to the base URL.
func WithAllowedHosts(hosts ...string) Option {
	return func(t *HTTPClient) {
		if t.allowedHosts == nil {
			t.allowedHosts = make(map[string]bool, len(hosts))
		}
		for _, h := range hosts {
			t.allowedHosts[strings.ToLower(h)] = true
		}
	}
}

// HTTPClient implements Transport over net/http with a cookie jar carrying
// the portal session.
type HTTPClient struct {
	base         *url.URL
	allowedHosts map[string]bool
	timeout      time.Duration
	roundTripper http.RoundTripper
	client       *http.Client
}

// NewHTTPClient builds a transport rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("transport: parsing base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transport: unsupported scheme %q", base.Scheme)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	t := &HTTPClient{
		base:    base,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if err := t.ResetSession(); err != nil {
		return nil, err
	}
	return t, nil
}

// ResetSession installs a fresh cookie jar. The portal issues a new session
// cookie on login, so each login exchange starts without stale cookies.
func (t *HTTPClient) ResetSession() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("transport: creating cookie jar: %w", err)
	}
	t.client = &http.Client{
		Jar:       jar,
		Timeout:   t.timeout,
		Transport: t.roundTripper,
	}
	return nil
}

// PostForm implements Transport.
func (t *HTTPClient) PostForm(ctx context.Context, path string, fields url.Values) (int, string, error) {
	target, err := t.resolve(path)
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(fields.Encode()))
	if err != nil {
		return 0, "", fmt.Errorf("transport: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req)
}

// Get implements Transport.
func (t *HTTPClient) Get(ctx context.Context, path string) (int, string, error) {
	target, err := t.resolve(path)
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, "", fmt.Errorf("transport: building request: %w", err)
	}
	return t.do(req)
}

func (t *HTTPClient) do(req *http.Request) (int, string, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("transport: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("transport: reading response body: %w", err)
	}
	return resp.StatusCode, string(body), nil
}

func (t *HTTPClient) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return t.base.String(), nil
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("transport: parsing path %q: %w", path, err)
	}
	if ref.IsAbs() {
		if (ref.Scheme == "http" || ref.Scheme == "https") && t.allowedHosts[strings.ToLower(ref.Host)] {
			return ref.String(), nil
		}
		return "", errors.New("transport: absolute paths are not resolved against the portal base")
	}
	return t.base.ResolveReference(ref).String(), nil
}
