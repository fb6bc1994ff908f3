package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/ylchen07/confluence-dc-mcp/internal/atlassian"
	"github.com/ylchen07/confluence-dc-mcp/internal/state"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Probe tool names.
const (
	ToolTestConnection = "confluence.test_connection"
	ToolHealthCheck    = "server.health_check"
)

// HealthTools serves the connectivity and health tools.
type HealthTools struct {
	prober    Prober
	session   *state.Session
	logger    *slog.Logger
	version   string
	baseURL   string
	verifySSL bool
	now       func() time.Time
}

// NewHealthTools registers the probe tools on the server.
func NewHealthTools(s *server.MCPServer, deps Dependencies) *HealthTools {
	ht := &HealthTools{
		prober:    deps.Prober,
		session:   deps.Session,
		logger:    deps.Logger,
		version:   deps.Version,
		baseURL:   deps.BaseURL,
		verifySSL: deps.VerifySSL,
		now:       deps.Now,
	}

	if ht.prober != nil {
		s.AddTool(
			mcp.NewTool(
				ToolTestConnection,
				mcp.WithDescription("Verify connectivity and authentication against Confluence"),
				mcp.WithInputSchema[TestConnectionArgs](),
				mcp.WithOutputSchema[atlassian.ProbeResult](),
			),
			mcp.NewTypedToolHandler(ht.handleTestConnection),
		)
	}

	s.AddTool(
		mcp.NewTool(
			ToolHealthCheck,
			mcp.WithDescription("Report server health, uptime and per-tool call statistics"),
			mcp.WithInputSchema[HealthCheckArgs](),
			mcp.WithOutputSchema[HealthReport](),
		),
		mcp.NewTypedToolHandler(ht.handleHealthCheck),
	)

	return ht
}

// TestConnectionArgs parameters for the connectivity probe.
type TestConnectionArgs struct {
	Detailed bool `json:"detailed,omitempty" jsonschema_description:"Include user and endpoint details"`
}

func (h *HealthTools) handleTestConnection(ctx context.Context, _ mcp.CallToolRequest, args TestConnectionArgs) (*mcp.CallToolResult, error) {
	result := h.prober.TestConnection(ctx)
	h.session.SetProbe(h.now(), result)

	payload := result
	if !args.Detailed {
		payload.Details = atlassian.ProbeDetails{BaseURL: result.Details.BaseURL}
	}

	text, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode probe result: %w", err)
	}
	if !result.Success {
		h.logger.Warn("confluence connection test failed", slog.String("message", result.Message))
		return mcp.NewToolResultError(string(text)), nil
	}
	return mcp.NewToolResultStructured(payload, string(text)), nil
}

// HealthCheckArgs parameters for the health check.
type HealthCheckArgs struct {
	Verbose bool `json:"verbose,omitempty" jsonschema_description:"Include runtime and connection details"`
}

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusUnknown  = "unknown"
)

// HealthReport is the health check payload.
type HealthReport struct {
	Status     string                   `json:"status"`
	Server     string                   `json:"server"`
	Version    string                   `json:"version"`
	StartedAt  time.Time                `json:"startedAt"`
	Uptime     string                   `json:"uptime"`
	LastProbe  *state.ProbeRecord       `json:"lastProbe,omitempty"`
	Operations map[string]state.OpStats `json:"operations"`
	Runtime    *RuntimeInfo             `json:"runtime,omitempty"`
	Connection *ConnectionInfo          `json:"connection,omitempty"`
}

// RuntimeInfo describes the Go process.
type RuntimeInfo struct {
	GoVersion  string `json:"goVersion"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heapAllocBytes"`
}

// ConnectionInfo describes the configured Confluence endpoint.
type ConnectionInfo struct {
	BaseURL   string `json:"baseUrl"`
	VerifySSL bool   `json:"verifySsl"`
}

func (h *HealthTools) handleHealthCheck(_ context.Context, _ mcp.CallToolRequest, args HealthCheckArgs) (*mcp.CallToolResult, error) {
	report := h.report(args.Verbose)

	text, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode health report: %w", err)
	}
	return mcp.NewToolResultStructured(report, string(text)), nil
}

func (h *HealthTools) report(verbose bool) HealthReport {
	snap := h.session.Snapshot(h.now())

	report := HealthReport{
		Status:     StatusUnknown,
		Server:     ServerName,
		Version:    h.version,
		StartedAt:  snap.StartedAt,
		Uptime:     snap.Uptime.Round(time.Second).String(),
		LastProbe:  snap.LastProbe,
		Operations: snap.Operations,
	}
	if snap.LastProbe != nil {
		report.Status = StatusDegraded
		if snap.LastProbe.Result.Success {
			report.Status = StatusHealthy
		}
	}

	if verbose {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		report.Runtime = &RuntimeInfo{
			GoVersion:  runtime.Version(),
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			Goroutines: runtime.NumGoroutine(),
			HeapAlloc:  mem.HeapAlloc,
		}
		report.Connection = &ConnectionInfo{BaseURL: h.baseURL, VerifySSL: h.verifySSL}
	}

	return report
}
