// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes knowledge-base lookups as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pdiddy/p2kb/internal/knowledge"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/internal/lookup"
)

// Name is the server name reported to clients.
const Name = "p2-knowledge-base"

// Searcher queries the knowledge index. *knowledge.Store implements it.
type Searcher interface {
	Retrieve(ctx context.Context, opts knowledge.QueryOptions) ([]knowledge.QueryResult, error)
}

// tools binds the lookup handlers to one knowledge base.
type tools struct {
	kb     *lookup.KB
	search Searcher
}

// New builds the MCP server. kb_search is registered only when search is
// non-nil.
func New(kb *lookup.KB, search Searcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	t := &tools{kb: kb, search: search}

	s.AddTool(mcp.NewTool("p2_instruction",
		mcp.WithDescription("Look up a P2 PASM2 instruction by mnemonic"),
		mcp.WithString("mnemonic", mcp.Required(),
			mcp.Description("Instruction mnemonic (e.g., ADD, MOV, JMP)")),
		mcp.WithString("category",
			mcp.Description("Optional category to narrow search")),
	), t.instruction)

	s.AddTool(mcp.NewTool("p2_instruction_list",
		mcp.WithDescription("List all P2 instructions in a category"),
		mcp.WithString("category", mcp.Required(),
			mcp.Description("Category name (e.g., math, flow, memory)")),
	), t.instructionList)

	s.AddTool(mcp.NewTool("smart_pin_mode",
		mcp.WithDescription("Get Smart Pin mode configuration"),
		mcp.WithString("mode", mcp.Required(),
			mcp.Description("Mode number or binary (e.g., 00010 or sync_tx)")),
	), t.smartPinMode)

	s.AddTool(mcp.NewTool("smart_pin_list",
		mcp.WithDescription("List all available Smart Pin modes"),
	), t.smartPinList)

	s.AddTool(mcp.NewTool("spin2_method",
		mcp.WithDescription("Look up a Spin2 method"),
		mcp.WithString("method", mcp.Required(),
			mcp.Description("Method name (e.g., cogid, waitms)")),
	), t.spin2Method)

	s.AddTool(mcp.NewTool("search_patterns",
		mcp.WithDescription("Search for code patterns"),
		mcp.WithString("pattern", mcp.Required(),
			mcp.Description("Pattern to search for (e.g., multi-cog, pwm, spi)")),
	), t.searchPatterns)

	if search != nil {
		s.AddTool(mcp.NewTool("kb_search",
			mcp.WithDescription("Full-text search across the indexed knowledge base"),
			mcp.WithString("query", mcp.Required(),
				mcp.Description("FTS5 query (e.g., modulo, \"smart pin\")")),
			mcp.WithString("kind",
				mcp.Description("Optional entry kind: instruction, method, object, document"),
				mcp.Enum("instruction", "method", "object", "document")),
			mcp.WithString("group",
				mcp.Description("Optional instruction group or method category")),
			mcp.WithNumber("max_results",
				mcp.Description("Maximum results (default from configuration)"),
				mcp.Min(1)),
		), t.kbSearch)
	}

	return s
}

// Serve runs s over in and out until ctx is cancelled or in is closed.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	l := kblog.WithComponent("mcp")
	l.Info().Msg("serving on stdio")
	if err := server.NewStdioServer(s).Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serving mcp: %w", err)
	}
	return nil
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult reports err as text. Not-found answers are ordinary results;
// anything else is flagged as a tool error.
func errorResult(err error, notFound string) (*mcp.CallToolResult, error) {
	if errors.Is(err, lookup.ErrNotFound) {
		return mcp.NewToolResultText(notFound), nil
	}
	l := kblog.WithComponent("mcp")
	l.Warn().Err(err).Msg("tool call failed")
	return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
}
