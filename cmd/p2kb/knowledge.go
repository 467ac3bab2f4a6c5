// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/knowledge"
	"github.com/pdiddy/p2kb/pkg/types"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the search index (store, retrieve, export)",
	Long: `Knowledge maintains a local SQLite full-text index of every YAML
document in the knowledge base. Use subcommands to build the index, query
it, or export it.`,
}

// --- store subcommand ---

var knowledgeStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Index the knowledge-base YAML tree",
	Long: `Store walks the knowledge base for YAML documents, classifies them as
instructions, methods, objects, or documents, and indexes their text with
FTS5. Unchanged files are skipped on subsequent runs and deleted files are
removed. An export file is written whenever the index changes.

With --watch the index is kept up to date until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runKnowledgeStore,
}

func runKnowledgeStore(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	store, err := knowledge.NewStore(knowledgeConfig(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	if watch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return store.Watch(ctx, os.Stdout, debounce)
	}

	summary, err := store.Ingest(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- retrieve subcommand ---

var knowledgeRetrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Query the index with full-text search and filters",
	Long: `Retrieve searches the index using FTS5 full-text search, structured
filters (kind, group), or a combination of both.`,
	RunE: runKnowledgeRetrieve,
}

func runKnowledgeRetrieve(cmd *cobra.Command, args []string) error {
	store, err := knowledge.NewStore(knowledgeConfig(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --kind, or --group")
	}

	results, err := store.Retrieve(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRetrieveOutput(results, jsonOutput)
}

func formatRetrieveOutput(results []knowledge.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-11s  %-20s  %-24s  %s\n",
		"Rank", "Kind", "Name", "Group", "File")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for i, r := range results {
		fmt.Fprintf(os.Stdout, "%-4d  %-11s  %-20s  %-24s  %s\n",
			i+1, r.Kind, clip(r.Name, 20), clip(r.Group, 24), r.ID)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// --- export subcommand ---

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the index to YAML or JSON",
	Long: `Export writes the full index (or a filtered subset) to
<index_dir>/export.yaml or export.json. Supports the same filter flags as
retrieve for partial exports.`,
	RunE: runKnowledgeExport,
}

func runKnowledgeExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := knowledge.NewStore(knowledgeConfig(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(context.Background(), opts)
	case "json":
		path, err = store.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

// --- shared helpers ---

func knowledgeConfig(cmd *cobra.Command) types.KnowledgeBaseConfig {
	cfg := loadConfig().KnowledgeBase
	if maxResults, _ := cmd.Flags().GetInt("max-results"); maxResults > 0 {
		cfg.MaxResults = maxResults
	}
	return cfg
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) knowledge.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}

	kind, _ := cmd.Flags().GetString("kind")
	group, _ := cmd.Flags().GetString("group")
	limit, _ := cmd.Flags().GetInt("limit")

	return knowledge.QueryOptions{
		Query:      queryText,
		Kind:       types.EntryKind(kind),
		Group:      group,
		MaxResults: limit,
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	knowledgeCmd.PersistentFlags().Int("max-results", 0, "default number of query results (default: knowledge_base.max_results)")

	// Store flags.
	knowledgeStoreCmd.Flags().Bool("watch", false, "re-index whenever YAML files change")
	knowledgeStoreCmd.Flags().Duration("debounce", knowledge.DefaultDebounce, "quiet period before re-indexing in --watch mode")

	// Retrieve flags.
	knowledgeRetrieveCmd.Flags().String("query", "", "full-text search query")
	knowledgeRetrieveCmd.Flags().String("kind", "", "filter by kind: instruction, method, object, document")
	knowledgeRetrieveCmd.Flags().String("group", "", "filter by instruction group or method category")
	knowledgeRetrieveCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	knowledgeRetrieveCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	knowledgeExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	knowledgeExportCmd.Flags().String("query", "", "full-text search filter for partial export")
	knowledgeExportCmd.Flags().String("kind", "", "filter by kind for partial export")
	knowledgeExportCmd.Flags().String("group", "", "filter by group for partial export")

	// Wire subcommands.
	knowledgeCmd.AddCommand(knowledgeStoreCmd)
	knowledgeCmd.AddCommand(knowledgeRetrieveCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)

	rootCmd.AddCommand(knowledgeCmd)
}
