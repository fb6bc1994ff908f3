package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrMissingToken is returned by RoundTrip when no personal access token was configured.
var ErrMissingToken = errors.New("auth: personal access token required")

// Transport injects the Confluence bearer token and JSON headers into outbound requests.
type Transport struct {
	base      http.RoundTripper
	token     string
	userAgent string
}

// NewTransport creates a new auth transport wrapping the provided RoundTripper.
func NewTransport(base http.RoundTripper, token, userAgent string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:      base,
		token:     strings.TrimSpace(token),
		userAgent: userAgent,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return nil, ErrMissingToken
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	clone.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(clone)
}

// Base returns the wrapped RoundTripper.
func (t *Transport) Base() http.RoundTripper {
	return t.base
}

// Wrap returns a copy of t that sends requests through base instead.
func (t *Transport) Wrap(base http.RoundTripper) *Transport {
	return NewTransport(base, t.token, t.userAgent)
}
