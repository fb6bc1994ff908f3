package atlassian

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ylchen07/confluence-dc-mcp/internal/auth"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Options{BaseURL: "  "}); err == nil {
		t.Fatalf("expected error when base URL is empty")
	}
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Options{BaseURL: "https://wiki.example.com/", AccessToken: "pat", VerifySSL: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := client.BaseURL(); got != "https://wiki.example.com/rest/api" {
		t.Fatalf("unexpected base URL: %s", got)
	}

	if client.logger == nil {
		t.Fatalf("expected logger to default")
	}

	if client.httpClient.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %v", client.httpClient.Timeout)
	}

	transport, ok := client.httpClient.Transport.(*auth.Transport)
	if !ok {
		t.Fatalf("expected auth transport, got %T", client.httpClient.Transport)
	}
	base := transport.Base().(*http.Transport)
	if base.TLSClientConfig != nil && base.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("TLS verification must stay enabled by default")
	}
}

func TestNewClientDisablesTLSVerification(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Options{BaseURL: "https://wiki.example.com", AccessToken: "pat", VerifySSL: false, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := client.httpClient.Transport.(*auth.Transport).Base().(*http.Transport)
	if base.TLSClientConfig == nil || !base.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify when verify_ssl is off")
	}
	if client.httpClient.Timeout != time.Second {
		t.Fatalf("unexpected timeout: %v", client.httpClient.Timeout)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		context string
		want    string
	}{
		{"https://wiki.example.com", "/confluence", "https://wiki.example.com/confluence/rest/api"},
		{"https://wiki.example.com/", "confluence/", "https://wiki.example.com/confluence/rest/api"},
		{"https://wiki.example.com/confluence", "/confluence", "https://wiki.example.com/confluence/rest/api"},
		{"https://confluence.example.com", "/confluence", "https://confluence.example.com/confluence/rest/api"},
		{"https://wiki.example.com/confluence/rest/api/", "/confluence", "https://wiki.example.com/confluence/rest/api"},
		{"wiki.example.com", "", "https://wiki.example.com/rest/api"},
		{"http://localhost:8090", "", "http://localhost:8090/rest/api"},
		{"", "/confluence", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got := NormalizeBaseURL(tc.in, tc.context)
			if got != tc.want {
				t.Fatalf("NormalizeBaseURL(%q, %q) = %q, want %q", tc.in, tc.context, got, tc.want)
			}
			if again := NormalizeBaseURL(got, tc.context); again != got {
				t.Fatalf("normalization not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestClientNewRequest(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	req, err := client.NewRequest(
		context.Background(),
		http.MethodPost,
		"content",
		url.Values{"expand": []string{"version"}},
		map[string]string{"type": "page"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.URL.Path; got != "/confluence/rest/api/content" {
		t.Fatalf("unexpected path: %s", got)
	}
	if got := req.URL.Query().Get("expand"); got != "version" {
		t.Fatalf("unexpected query value: %s", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content-type: %s", got)
	}
	var body map[string]string
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["type"] != "page" {
		t.Fatalf("unexpected body: %#v", body)
	}

	get, err := client.NewRequest(context.Background(), http.MethodGet, "/space", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if get.Header.Get("Content-Type") != "" || get.Body != nil {
		t.Fatalf("GET without body should not carry content-type")
	}
}

func TestClientVerbs(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	client.SetTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		switch req.Method {
		case http.MethodGet, http.MethodPost, http.MethodPut:
			return jsonResponse(http.StatusOK, `{"value":"`+req.Method+`"}`), nil
		case http.MethodDelete:
			return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(strings.NewReader(""))}, nil
		}
		t.Fatalf("unexpected method %s", req.Method)
		return nil, nil
	}))

	ctx := context.Background()
	var out struct {
		Value string `json:"value"`
	}

	if err := client.Get(ctx, "/content/1", nil, &out); err != nil || out.Value != "GET" {
		t.Fatalf("Get: %v %q", err, out.Value)
	}
	if err := client.Post(ctx, "/content", map[string]string{}, &out); err != nil || out.Value != "POST" {
		t.Fatalf("Post: %v %q", err, out.Value)
	}
	if err := client.Put(ctx, "/content/1", map[string]string{}, &out); err != nil || out.Value != "PUT" {
		t.Fatalf("Put: %v %q", err, out.Value)
	}
	if err := client.Delete(ctx, "/content/1", &out); err != nil {
		t.Fatalf("Delete with empty body: %v", err)
	}
}

func TestClientDoJSONError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	client.SetTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusConflict, `{"statusCode":409,"message":"Version must be incremented on update. Current version is: 7"}`), nil
	}))

	err := client.Put(context.Background(), "/content/1", map[string]int{"number": 7}, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.CurrentVersion != 7 {
		t.Fatalf("unexpected error: %#v", apiErr)
	}
}

func TestClientDoDecodeFailure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	client.SetTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"value"`), nil
	}))

	var out struct{}
	if err := client.Get(context.Background(), "/", nil, &out); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestClientNetworkFailure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	boom := errors.New("dial tcp: connection refused")
	client.SetTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}))

	err := client.Get(context.Background(), "/space", nil, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		t.Fatalf("network failure must not look like an HTTP error")
	}
}

func TestClientAgainstTLSServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/space" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(srv.Close)

	insecure, err := NewClient(Options{BaseURL: srv.URL, AccessToken: "pat", VerifySSL: false})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := insecure.Get(context.Background(), "/space", nil, nil); err != nil {
		t.Fatalf("expected self-signed cert to be accepted when verification is off: %v", err)
	}

	strict, err := NewClient(Options{BaseURL: srv.URL, AccessToken: "pat", VerifySSL: true})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = strict.Get(context.Background(), "/space", nil, nil)
	var apiErr *Error
	if err == nil || errors.As(err, &apiErr) {
		t.Fatalf("expected TLS failure without HTTP status, got %v", err)
	}
	var certErr *tls.CertificateVerificationError
	if !errors.As(err, &certErr) && !strings.Contains(err.Error(), "certificate") {
		t.Fatalf("expected certificate error, got %v", err)
	}
}

func TestParseError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		status      int
		body        string
		wantText    string
		wantVersion int
	}{
		{"message field", 400, `{"message":"boom"}`, "atlassian: 400 boom", 0},
		{"error messages", 500, `{"errorMessages":["nope"]}`, "atlassian: 500 nope", 0},
		{"data errors", 400, `{"data":{"errors":[{"message":{"key":"parent.not.found"}}]}}`, "atlassian: 400 parent.not.found", 0},
		{"explicit current version", 409, `{"message":"conflict","currentVersion":"12"}`, "atlassian: 409 conflict", 12},
		{"raw body", 404, "unexpected", "atlassian: 404 unexpected", 0},
		{"empty body", 502, "", "atlassian: 502", 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := &http.Response{
				StatusCode: tc.status,
				Body:       io.NopCloser(strings.NewReader(tc.body)),
			}
			err := parseError(res)
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Fatalf("unexpected status: %d", apiErr.StatusCode)
			}
			if apiErr.Error() != tc.wantText {
				t.Fatalf("unexpected error string: %s", apiErr.Error())
			}
			if apiErr.CurrentVersion != tc.wantVersion {
				t.Fatalf("unexpected current version: %d", apiErr.CurrentVersion)
			}
		})
	}
}

func TestErrorMentions(t *testing.T) {
	t.Parallel()

	err := &Error{StatusCode: 400, Message: "Could not parse cql : type=page AND"}
	if !err.Mentions("CQL") {
		t.Fatalf("expected case-insensitive match")
	}
	if err.Mentions("parent") {
		t.Fatalf("unexpected match")
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(Options{
		BaseURL:     "https://wiki.example.com",
		AccessToken: "token",
		ContextPath: "/confluence",
		VerifySSL:   true,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
