package atlassian

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/ylchen07/confluence-dc-mcp/internal/auth"
)

const (
	apiMount       = "/rest/api"
	defaultTimeout = 30 * time.Second
)

// ErrDecode marks a 2xx response whose body could not be decoded.
var ErrDecode = errors.New("atlassian: decode response")

// Options configures a Client.
type Options struct {
	BaseURL     string
	AccessToken string
	VerifySSL   bool
	// ContextPath is appended to the base URL when missing, e.g. "/confluence".
	ContextPath string
	Timeout     time.Duration
	UserAgent   string
	Logger      *slog.Logger
}

// Client is a helper around the Confluence Data Center REST API. It is safe
// for concurrent use once constructed.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a Client from opts.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("atlassian: base URL required")
	}

	parsed, err := url.Parse(NormalizeBaseURL(opts.BaseURL, opts.ContextPath))
	if err != nil {
		return nil, fmt.Errorf("atlassian: parse base url: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.VerifySSL {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed DC installs
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: auth.NewTransport(base, opts.AccessToken, opts.UserAgent),
		},
		logger: logger,
	}, nil
}

// NormalizeBaseURL trims trailing slashes, adds a scheme when missing and
// appends contextPath and the REST mount when they are absent. Applying it
// to its own output is a no-op.
func NormalizeBaseURL(raw, contextPath string) string {
	normalized := strings.TrimRight(strings.TrimSpace(raw), "/")
	if normalized == "" {
		return ""
	}

	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		normalized = "https://" + normalized
	}

	if strings.HasSuffix(normalized, apiMount) {
		return normalized
	}

	contextPath = "/" + strings.Trim(contextPath, "/")
	if contextPath != "/" && !hasPathSegment(normalized, contextPath) {
		normalized += contextPath
	}

	return normalized + apiMount
}

func hasPathSegment(rawURL, segment string) bool {
	path := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		path = parsed.Path
	}
	return strings.Contains(path+"/", segment+"/")
}

// BaseURL returns the normalized REST base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE request. out may be nil; empty bodies are accepted.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.NewRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	started := time.Now()
	err = c.Do(req, out)

	attrs := []any{
		slog.String("method", method),
		slog.String("path", req.URL.Path),
		slog.Duration("duration", time.Since(started)),
	}
	var apiErr *Error
	switch {
	case err == nil:
		c.logger.Debug("confluence api call", attrs...)
	case errors.As(err, &apiErr):
		c.logger.Warn("confluence api call failed", append(attrs, slog.Int("status", apiErr.StatusCode), slog.String("message", apiErr.Summary()))...)
	default:
		c.logger.Warn("confluence api call failed", append(attrs, slog.Any("error", err))...)
	}

	return err
}

// NewRequest builds an HTTP request with optional query parameters and JSON body.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("atlassian: encode body: %w", err)
		}
		bodyReader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// Do executes the request and decodes the response JSON into out if provided.
func (c *Client) Do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("atlassian: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return parseError(res)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("atlassian: read response: %w", err)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return nil
}

// SetTransport overrides the underlying HTTP transport, keeping
// authentication in front of it. Useful for testing.
func (c *Client) SetTransport(rt http.RoundTripper) {
	if rt == nil {
		return
	}
	if current, ok := c.httpClient.Transport.(*auth.Transport); ok {
		c.httpClient.Transport = current.Wrap(rt)
		return
	}
	c.httpClient.Transport = rt
}
