package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/ylchen07/confluence-dc-mcp/internal/config"
	"github.com/ylchen07/confluence-dc-mcp/pkg/logging"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "confluence-dc-mcp",
		Short:         "MCP server for Confluence Data Center",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration directory or file")

	cmd.AddCommand(
		newServeCmd(opts),
		newProbeCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newProbeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Test connectivity to Confluence and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}

			client, err := newClient(cfg, logger)
			if err != nil {
				return err
			}

			result := client.TestConnection(contextOrBackground(cmd.Context()))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode probe result: %w", err)
			}
			if !result.Success {
				return fmt.Errorf("probe failed: %s", result.Message)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "confluence-dc-mcp %s\n", version)
		},
	}
}

func load(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		slog.Default().Error("failed to load configuration", slog.Any("error", err))
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat), nil
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, logger, err := load(opts)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.ProbeOnStartup {
		a.probe(ctx)
	}

	logger.Info("starting stdio server",
		slog.String("version", version),
		slog.String("base_url", a.client.BaseURL()),
	)

	stdio := server.NewStdioServer(a.server)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stdio server terminated", slog.Any("error", err))
		return err
	}

	logger.Info("stdio server stopped")
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
