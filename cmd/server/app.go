package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ylchen07/confluence-dc-mcp/internal/atlassian"
	"github.com/ylchen07/confluence-dc-mcp/internal/config"
	"github.com/ylchen07/confluence-dc-mcp/internal/confluence"
	"github.com/ylchen07/confluence-dc-mcp/internal/dispatch"
	mcpserver "github.com/ylchen07/confluence-dc-mcp/internal/mcp"
	"github.com/ylchen07/confluence-dc-mcp/internal/state"
)

// app is the wired process: one client, one session, one MCP server.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *atlassian.Client
	session *state.Session
	server  *server.MCPServer
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	session := state.NewSession(time.Now())

	svc := confluence.NewService(client,
		confluence.WithSpaceKeyCase(
			confluence.CasePolicy(cfg.Confluence.SpaceKeys.Create),
			confluence.CasePolicy(cfg.Confluence.SpaceKeys.Update),
		),
		confluence.WithLogger(logger),
	)

	dispatcher := dispatch.New(svc,
		dispatch.WithSession(session),
		dispatch.WithLogger(logger),
	)

	srv := mcpserver.NewServer(mcpserver.Dependencies{
		Dispatcher: dispatcher,
		Prober:     client,
		Session:    session,
		Logger:     logger,
		Version:    version,
		BaseURL:    client.BaseURL(),
		VerifySSL:  cfg.Confluence.VerifySSL,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		session: session,
		server:  srv,
	}, nil
}

func newClient(cfg *config.Config, logger *slog.Logger) (*atlassian.Client, error) {
	client, err := atlassian.NewClient(atlassian.Options{
		BaseURL:     cfg.Confluence.BaseURL,
		AccessToken: cfg.Confluence.AccessToken,
		VerifySSL:   cfg.Confluence.VerifySSL,
		ContextPath: cfg.Confluence.ContextPath,
		Timeout:     cfg.Confluence.Timeout,
		UserAgent:   cfg.Confluence.UserAgent,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize confluence client: %w", err)
	}
	return client, nil
}

// probe runs the connectivity check and records it in the session. A
// failed probe is logged but does not stop the server.
func (a *app) probe(ctx context.Context) atlassian.ProbeResult {
	result := a.client.TestConnection(ctx)
	a.session.SetProbe(time.Now(), result)

	if !result.Success {
		a.logger.Warn("confluence connection test failed, continuing",
			slog.String("message", result.Message),
			slog.String("base_url", result.Details.BaseURL),
		)
	}
	return result
}
