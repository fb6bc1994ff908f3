package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ylchen07/confluence-dc-mcp/internal/atlassian"
	"github.com/ylchen07/confluence-dc-mcp/internal/dispatch"
	"github.com/ylchen07/confluence-dc-mcp/internal/state"

	"github.com/mark3labs/mcp-go/server"
)

// ServerName is advertised during the MCP handshake.
const ServerName = "Confluence DC MCP"

const instructions = `Tools for Confluence Data Center pages, spaces, versions and comments.
Content is exchanged in Confluence storage format (XHTML).
Updates need versionNumber = current version + 1; on a version conflict fetch the page again and retry.
Deletes are permanent. Deleting a comment also deletes its replies.`

// Prober checks connectivity to Confluence.
type Prober interface {
	TestConnection(ctx context.Context) atlassian.ProbeResult
}

// Dependencies bundles the services required for MCP server construction.
type Dependencies struct {
	Dispatcher *dispatch.Dispatcher
	Prober     Prober
	Session    *state.Session
	Logger     *slog.Logger
	Version    string
	BaseURL    string
	VerifySSL  bool
	Now        func() time.Time
}

// NewServer builds an MCP server with the Confluence tools registered.
func NewServer(deps Dependencies) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = state.NewSession(time.Now())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	srv := server.NewMCPServer(
		ServerName,
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)

	if deps.Dispatcher != nil {
		NewConfluenceTools(srv, deps.Dispatcher, deps.Logger)
	}
	NewHealthTools(srv, deps)

	return srv
}
