// Package fetch provides HTTP retrieval for collector sub-sources: context
// aware, proxy aware, with typed errors that carry retry classification.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonathan/person-intel/internal/proxy"
	"github.com/jonathan/person-intel/internal/retry"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps response bodies to protect against runaway endpoints.
const maxBodySize = 10 << 20 // 10 MiB

// Error represents a failed fetch. Retryable mirrors the retry package's
// transient classification so callers can wrap fetches in retry.Do.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	if e.Retryable {
		cause := e.Cause
		if cause == nil {
			cause = fmt.Errorf("HTTP %d", e.StatusCode)
		}
		return retry.MarkTransient(cause)
	}
	return e.Cause
}

// Result holds a successful response.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	Headers map[string]string
}

// DefaultOptions returns sensible fetch defaults.
func DefaultOptions() *Options {
	return &Options{Timeout: DefaultTimeout}
}

// Client performs HTTP GETs through the proxy manager's current identity.
type Client struct {
	options *Options
	proxies *proxy.Manager
}

// NewClient creates a fetch client. A nil proxy manager means direct
// connections with the default user agent.
func NewClient(options *Options, proxies *proxy.Manager) *Client {
	if options == nil {
		options = DefaultOptions()
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if proxies == nil {
		proxies = proxy.New(proxy.Config{})
	}
	return &Client{options: options, proxies: proxies}
}

// Get retrieves a URL. Non-2xx statuses return an *Error with Retryable set
// for 429 and 5xx responses; 4xx responses (other than 429) are permanent.
func (c *Client) Get(ctx context.Context, urlStr string, params url.Values, headers map[string]string) (*Result, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}
	if params != nil {
		parsed.RawQuery = params.Encode()
	}

	identity := c.proxies.Next()
	httpClient, err := c.httpClient(identity)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "invalid proxy configuration", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", identity.UserAgent)
	for k, v := range c.options.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		c.proxies.ReportFailure(identity)
		return nil, &Error{URL: urlStr, Message: "request failed", Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.proxies.ReportFailure(identity)
		return nil, &Error{URL: urlStr, Message: "failed to read response", Retryable: true, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if retryable {
			c.proxies.ReportFailure(identity)
		}
		return nil, &Error{
			URL:        urlStr,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
			Retryable:  retryable,
		}
	}

	c.proxies.ReportSuccess(identity)
	return &Result{
		URL:         urlStr,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// GetJSON retrieves a URL and decodes the response body into out.
// A malformed body is a permanent error: retrying will not fix it.
func (c *Client) GetJSON(ctx context.Context, urlStr string, params url.Values, headers map[string]string, out any) error {
	result, err := c.Get(ctx, urlStr, params, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result.Body, out); err != nil {
		return &Error{URL: urlStr, StatusCode: result.StatusCode, Message: "malformed JSON response", Cause: err}
	}
	return nil
}

// httpClient builds a client routed through the identity's proxy, if any.
func (c *Client) httpClient(identity proxy.Identity) (*http.Client, error) {
	client := &http.Client{Timeout: c.options.Timeout}
	if identity.ProxyURL != "" {
		proxyURL, err := url.Parse(identity.ProxyURL)
		if err != nil {
			return nil, err
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return client, nil
}
