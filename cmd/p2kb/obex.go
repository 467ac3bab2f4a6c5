// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/obex"
)

var obexCmd = &cobra.Command{
	Use:   "obex",
	Short: "Maintain OBEX object records",
}

var obexConsolidateCmd = &cobra.Command{
	Use:   "consolidate-authors",
	Short: "Rename archiver-imported authors to their OBEX account names",
	Long: `Consolidate-authors applies the author mapping (obex.author_map in the
config file, or the built-in list) to records imported by the GitHub
archiver. Each changed record keeps the replaced name in
metadata.original_archiver_name.`,
	Args: cobra.NoArgs,
	RunE: runObexConsolidate,
}

var obexFixAuthorsCmd = &cobra.Command{
	Use:   "fix-authors",
	Short: "Clear author fields that hold scraped page text",
	Args:  cobra.NoArgs,
	RunE:  runObexFixAuthors,
}

var obexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report author coverage and the most prolific authors",
	Args:  cobra.NoArgs,
	RunE:  runObexStats,
}

var obexAuditIDsCmd = &cobra.Command{
	Use:   "audit-ids",
	Short: "Check that file names match object IDs",
	Args:  cobra.NoArgs,
	RunE:  runObexAuditIDs,
}

var obexValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check required object fields",
	Args:  cobra.NoArgs,
	RunE:  runObexValidate,
}

func init() {
	for _, c := range []*cobra.Command{obexConsolidateCmd, obexFixAuthorsCmd, obexStatsCmd, obexAuditIDsCmd, obexValidateCmd} {
		c.Flags().String("dir", "", "object directory (default: obex_dir)")
		obexCmd.AddCommand(c)
	}
	obexStatsCmd.Flags().Int("top", 0, "number of authors to list (default: obex.top_authors)")

	rootCmd.AddCommand(obexCmd)
}

func obexDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	kb := loadConfig().KnowledgeBase
	return kb.Resolve(kb.ObexDir)
}

func runObexConsolidate(cmd *cobra.Command, args []string) error {
	snap, err := snapshotter()
	if err != nil {
		return err
	}
	s, err := obex.ConsolidateAuthors(obexDir(cmd), authorMap(loadConfig().Obex), snap, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("%d updated, %d skipped, %d failed\n", len(s.Updated), s.Skipped, s.Failed)
	if s.HasFailures() {
		return fmt.Errorf("%d record(s) failed", s.Failed)
	}
	return nil
}

func runObexFixAuthors(cmd *cobra.Command, args []string) error {
	snap, err := snapshotter()
	if err != nil {
		return err
	}
	fixed, err := obex.FixCorruptedAuthors(obexDir(cmd), snap, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("cleared %d corrupt author field(s)\n", len(fixed))
	if len(fixed) > 0 {
		fmt.Println("objects needing author re-extraction:")
		for _, c := range fixed {
			fmt.Printf("  %s: %s\n", c.ObjectID, c.Title)
		}
	}
	return nil
}

func runObexStats(cmd *cobra.Command, args []string) error {
	top, _ := cmd.Flags().GetInt("top")
	if top <= 0 {
		top = loadConfig().Obex.TopAuthors
	}
	s, err := obex.AuthorStats(obexDir(cmd), top)
	if err != nil {
		return err
	}
	s.WriteText(os.Stdout)
	return nil
}

func runObexAuditIDs(cmd *cobra.Command, args []string) error {
	a, err := obex.AuditObjectIDs(obexDir(cmd))
	if err != nil {
		return err
	}
	a.WriteText(os.Stdout)
	if a.HasFailures() {
		return fmt.Errorf("%d mismatch(es), %d unreadable", len(a.Mismatches), len(a.Unreadable))
	}
	return nil
}

func runObexValidate(cmd *cobra.Command, args []string) error {
	bad, total, err := obex.Validate(obexDir(cmd))
	if err != nil {
		return err
	}
	for _, b := range bad {
		fmt.Printf("failed  %s: %v\n", b.File, b.Err)
	}
	fmt.Printf("%d/%d objects valid\n", total-len(bad), total)
	if len(bad) > 0 {
		return fmt.Errorf("%d invalid object(s)", len(bad))
	}
	return nil
}
