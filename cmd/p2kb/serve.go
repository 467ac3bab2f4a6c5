// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/knowledge"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/internal/lookup"
	"github.com/pdiddy/p2kb/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve knowledge-base lookups",
}

var serveMCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve lookup tools over MCP on stdin/stdout",
	Long: `MCP serves read-only lookups (instructions, instruction categories,
smart pin modes, Spin2 methods, pattern notes) as Model Context Protocol
tools on stdin and stdout. When the search index has been built with
"p2kb knowledge store", a kb_search tool is served as well.

Diagnostics go to stderr; stdout carries only protocol messages.`,
	Args: cobra.NoArgs,
	RunE: runServeMCP,
}

func init() {
	serveCmd.AddCommand(serveMCPCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServeMCP(cmd *cobra.Command, args []string) error {
	cfg := loadConfig().KnowledgeBase
	l := kblog.WithComponent("serve")

	var search mcpserver.Searcher
	if knowledge.IndexExists(cfg) {
		store, err := knowledge.NewStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		search = store
	} else {
		l.Info().Msg("no search index; kb_search disabled")
	}

	s := mcpserver.New(lookup.New(cfg), search, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return mcpserver.Serve(ctx, s, os.Stdin, os.Stdout)
}
