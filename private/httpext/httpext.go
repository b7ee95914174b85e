// Package httpext is a small HTTP client wrapper with pooling, retries and
// normalized errors.
package httpext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/akave-ai/akavesdk/private/retry"
)

var logger = logging.Logger("httpext")

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// HTTPError reports a non-2xx response.
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %s %s failed with status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Client wraps an http.Client with base-URL resolution and transport-level
// retries.
type Client struct {
	baseURL string
	timeout time.Duration
	retry   retry.WithRetry
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxRetries overrides the retry attempt budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.retry.MaxAttempts = n }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient returns a Client resolving relative paths against baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
		retry:   retry.New(defaultMaxAttempts, defaultBaseDelay),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes idle connections held by the transport.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, params url.Values, headers http.Header) (*http.Response, []byte, error) {
	return c.request(ctx, http.MethodGet, path, params, nil, headers)
}

// Post sends a POST request with a JSON body when body is non-nil.
func (c *Client) Post(ctx context.Context, path string, params url.Values, body any, headers http.Header) (*http.Response, []byte, error) {
	return c.requestJSON(ctx, http.MethodPost, path, params, body, headers)
}

// Put sends a PUT request with a JSON body when body is non-nil.
func (c *Client) Put(ctx context.Context, path string, params url.Values, body any, headers http.Header) (*http.Response, []byte, error) {
	return c.requestJSON(ctx, http.MethodPut, path, params, body, headers)
}

// PutRaw sends a PUT request with an opaque body.
func (c *Client) PutRaw(ctx context.Context, path string, data []byte, headers http.Header) (*http.Response, []byte, error) {
	return c.request(ctx, http.MethodPut, path, nil, data, headers)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, params url.Values, headers http.Header) (*http.Response, []byte, error) {
	return c.request(ctx, http.MethodDelete, path, params, nil, headers)
}

func (c *Client) requestJSON(ctx context.Context, method, path string, params url.Values, body any, headers http.Header) (*http.Response, []byte, error) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		if headers == nil {
			headers = http.Header{}
		}
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "application/json")
		}
	}
	return c.request(ctx, method, path, params, raw, headers)
}

func (c *Client) request(ctx context.Context, method, path string, params url.Values, body []byte, headers http.Header) (*http.Response, []byte, error) {
	fullURL := c.buildURL(path, params)

	var (
		resp     *http.Response
		respBody []byte
	)
	err := c.retry.Do(ctx, func() (bool, error) {
		var err error
		resp, respBody, err = c.do(ctx, method, fullURL, body, headers)
		if err == nil {
			return false, nil
		}
		// Transport errors and server-side failures are worth another try;
		// client errors are not.
		var httpErr *HTTPError
		if he, ok := err.(*HTTPError); ok {
			httpErr = he
		}
		retryable := httpErr == nil || httpErr.Status >= http.StatusInternalServerError
		return retryable, err
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, respBody, nil
}

func (c *Client) do(ctx context.Context, method, fullURL string, body []byte, headers http.Header) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	logger.Debugf("--> %s %s", method, fullURL)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil, fmt.Errorf("HTTP %s %s timed out after %s", method, fullURL, c.timeout)
		}
		return nil, nil, fmt.Errorf("HTTP %s %s request error: %w", method, fullURL, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("error closing HTTP response: %s", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if len(respBody) < 300 {
		logger.Debugf("<-- %d %s", resp.StatusCode, string(respBody))
	} else {
		logger.Debugf("<-- %d %s...", resp.StatusCode, string(respBody[:230]))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &HTTPError{Method: method, URL: fullURL, Status: resp.StatusCode, Body: string(respBody)}
	}
	return resp, respBody, nil
}

func (c *Client) buildURL(path string, params url.Values) string {
	full := path
	if c.baseURL != "" && !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		full = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if q := BuildQueryString(params); q != "" {
		full += q
	}
	return full
}

// ParseJSONResponse decodes body into out.
func ParseJSONResponse(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// BuildQueryString encodes params into a "?k=v" query string. Empty values
// are dropped and multi-valued keys are repeated.
func BuildQueryString(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	clean := url.Values{}
	for key, values := range params {
		for _, v := range values {
			if v != "" {
				clean.Add(key, v)
			}
		}
	}
	if len(clean) == 0 {
		return ""
	}
	return "?" + clean.Encode()
}

// RangeDownload fetches length bytes starting at offset from url. Servers
// answering 200 instead of 206 are tolerated since some CDNs ignore range
// headers.
func RangeDownload(ctx context.Context, client *http.Client, url string, offset, length int64) ([]byte, error) {
	if length <= 0 || offset < 0 {
		return nil, fmt.Errorf("length must be positive and offset must be non-negative")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("error closing HTTP response: %s", cerr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
