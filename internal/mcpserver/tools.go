// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pdiddy/p2kb/internal/knowledge"
	"github.com/pdiddy/p2kb/pkg/types"
)

func (t *tools) instruction(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mnemonic, err := req.RequireString("mnemonic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := t.kb.Instruction(mnemonic, req.GetString("category", ""))
	if err != nil {
		return errorResult(err, fmt.Sprintf("Instruction '%s' not found", mnemonic))
	}
	return jsonResult(rec)
}

func (t *tools) instructionList(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := t.kb.InstructionList(category)
	if err != nil {
		// The lookup error already names the available categories.
		return errorResult(err, err.Error())
	}
	return jsonResult(c)
}

func (t *tools) smartPinMode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := req.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := t.kb.SmartPinMode(mode)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Smart Pin mode '%s' not found", mode))
	}
	return jsonResult(rec)
}

func (t *tools) smartPinList(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	modes, err := t.kb.SmartPinModes()
	if err != nil {
		return errorResult(err, "")
	}
	return jsonResult(modes)
}

func (t *tools) spin2Method(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	method, err := req.RequireString("method")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := t.kb.Spin2Method(method)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Spin2 method '%s' not found", method))
	}
	return jsonResult(rec)
}

func (t *tools) searchPatterns(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := t.kb.SearchPatterns(pattern)
	if err != nil {
		return errorResult(err, "")
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No patterns found matching '%s'", pattern)), nil
	}
	return jsonResult(results)
}

func (t *tools) kbSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := t.search.Retrieve(ctx, knowledge.QueryOptions{
		Query:      query,
		Kind:       types.EntryKind(req.GetString("kind", "")),
		Group:      req.GetString("group", ""),
		MaxResults: req.GetInt("max_results", 0),
	})
	if err != nil {
		return errorResult(err, "")
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No entries match '%s'", query)), nil
	}
	return jsonResult(results)
}
