package integration

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/ylchen07/confluence-dc-mcp/internal/atlassian"
	"github.com/ylchen07/confluence-dc-mcp/internal/config"
	"github.com/ylchen07/confluence-dc-mcp/internal/confluence"
	"github.com/ylchen07/confluence-dc-mcp/internal/dispatch"
)

// requireIntegration skips the test if MCP_INTEGRATION environment variable is not set.
func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("MCP_INTEGRATION") == "" {
		t.Skip("MCP_INTEGRATION not set; skipping integration tests")
	}
}

// resolveEnv returns the first non-empty environment variable value from the provided keys.
func resolveEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

// setupClient builds a client from the regular configuration sources
// (CONFLUENCE_BASE_URL, CONFLUENCE_PERSONAL_ACCESS_TOKEN, .netrc, ...).
func setupClient(t *testing.T) *atlassian.Client {
	t.Helper()

	if resolveEnv("CONFLUENCE_BASE_URL", "CONFLUENCE_MCP_CONFLUENCE_BASE_URL") == "" {
		t.Skip("CONFLUENCE_BASE_URL not set")
	}

	cfg, err := config.Load(os.Getenv("CONFLUENCE_MCP_CONFIG"))
	if err != nil {
		t.Skipf("Confluence configuration incomplete: %v", err)
	}

	client, err := atlassian.NewClient(atlassian.Options{
		BaseURL:     cfg.Confluence.BaseURL,
		AccessToken: cfg.Confluence.AccessToken,
		VerifySSL:   cfg.Confluence.VerifySSL,
		ContextPath: cfg.Confluence.ContextPath,
		Timeout:     cfg.Confluence.Timeout,
		UserAgent:   cfg.Confluence.UserAgent,
		Logger:      testLogger(t),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

// setupService returns a service over a live client.
func setupService(t *testing.T) (*confluence.Service, string) {
	t.Helper()

	client := setupClient(t)
	return confluence.NewService(client, confluence.WithLogger(testLogger(t))), client.BaseURL()
}

// setupDispatcher returns a dispatcher over a live client.
func setupDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()

	svc, _ := setupService(t)
	return dispatch.New(svc, dispatch.WithLogger(testLogger(t)))
}

// testSpaceKey returns the space write tests may create pages in.
func testSpaceKey(t *testing.T) string {
	t.Helper()

	key := resolveEnv("CONFLUENCE_TEST_SPACE_KEY")
	if key == "" {
		t.Skip("CONFLUENCE_TEST_SPACE_KEY not set; skipping write tests")
	}
	return key
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// skipIfEmpty skips the test if the provided slice is empty with a helpful message.
func skipIfEmpty[T any](t *testing.T, items []T, itemType string) {
	t.Helper()
	if len(items) == 0 {
		t.Skipf("no %s found; cannot proceed with test", itemType)
	}
}
