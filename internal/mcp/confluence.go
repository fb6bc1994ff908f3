package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ylchen07/confluence-dc-mcp/internal/confluence"
	"github.com/ylchen07/confluence-dc-mcp/internal/dispatch"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ConfluenceTools exposes the dispatcher operations as MCP tools.
type ConfluenceTools struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// NewConfluenceTools registers one tool per dispatcher operation.
func NewConfluenceTools(s *server.MCPServer, d *dispatch.Dispatcher, logger *slog.Logger) *ConfluenceTools {
	ct := &ConfluenceTools{dispatcher: d, logger: logger}

	for _, def := range confluenceToolDefs() {
		opts := append([]mcp.ToolOption{mcp.WithDescription(def.description)}, def.schema)
		s.AddTool(mcp.NewTool(def.name, opts...), ct.handler(def.name))
	}

	return ct
}

type toolDef struct {
	name        string
	description string
	schema      mcp.ToolOption
}

func confluenceToolDefs() []toolDef {
	return []toolDef{
		{
			name:        dispatch.ToolCreatePage,
			description: "Create a Confluence page in a space, optionally under a parent page. Content is storage format (XHTML).",
			schema:      mcp.WithInputSchema[confluence.CreatePageParams](),
		},
		{
			name:        dispatch.ToolGetPage,
			description: "Get a page with body, version, space, ancestors, child pages and comments. Pass version to read a historical version.",
			schema:      mcp.WithInputSchema[confluence.GetPageParams](),
		},
		{
			name:        dispatch.ToolUpdatePage,
			description: "Update a page. versionNumber must be the current version + 1. Omitted title or content keep their current values.",
			schema:      mcp.WithInputSchema[confluence.UpdatePageParams](),
		},
		{
			name:        dispatch.ToolDeletePage,
			description: "Permanently delete a page. This cannot be undone.",
			schema:      mcp.WithInputSchema[confluence.DeletePageParams](),
		},
		{
			name:        dispatch.ToolSearchPages,
			description: "Search pages with CQL. When spaceKey or title are given and CQL is rejected, a plain filter search is used instead.",
			schema:      mcp.WithInputSchema[confluence.SearchPagesParams](),
		},
		{
			name:        dispatch.ToolListSpaces,
			description: "List spaces visible to the token, optionally filtered by type and status.",
			schema:      mcp.WithInputSchema[confluence.ListSpacesParams](),
		},
		{
			name:        dispatch.ToolListPageVersions,
			description: "List the version history of a page. Each version links to its historical content.",
			schema:      mcp.WithInputSchema[confluence.ListPageVersionsParams](),
		},
		{
			name:        dispatch.ToolListComments,
			description: "List comments on a page. Set depth to all to include nested replies.",
			schema:      mcp.WithInputSchema[confluence.ListCommentsParams](),
		},
		{
			name:        dispatch.ToolAddComment,
			description: "Add a comment to a page, or a reply when parentCommentId is given.",
			schema:      mcp.WithInputSchema[confluence.AddCommentParams](),
		},
		{
			name:        dispatch.ToolUpdateComment,
			description: "Update a comment. versionNumber must be the current version + 1.",
			schema:      mcp.WithInputSchema[confluence.UpdateCommentParams](),
		},
		{
			name:        dispatch.ToolDeleteComment,
			description: "Permanently delete a comment and all of its replies.",
			schema:      mcp.WithInputSchema[confluence.DeleteCommentParams](),
		},
	}
}

func (c *ConfluenceTools) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env, err := c.dispatcher.Dispatch(ctx, name, req.GetArguments())
		if err != nil {
			var protoErr *dispatch.ProtocolError
			if !errors.As(err, &protoErr) {
				c.logger.Error("dispatch failed", slog.String("tool", name), slog.Any("error", err))
			}
			return nil, err
		}
		return envelopeResult(env)
	}
}

// envelopeResult renders an envelope as a tool result. Failures carry
// isError and the envelope text so clients see errorKind and retryable.
func envelopeResult(env dispatch.Envelope) (*mcp.CallToolResult, error) {
	text, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	if !env.Success() {
		return mcp.NewToolResultError(string(text)), nil
	}
	return mcp.NewToolResultStructured(env, string(text)), nil
}
