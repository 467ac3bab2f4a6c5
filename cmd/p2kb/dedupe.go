// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/dedupe"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find and merge hash-suffixed duplicate instruction records",
	Long: `Dedupe groups pasm2_*.yaml records by base name (the 8-character hash
suffix removed). Without --merge it only reports the groups. With --merge
the largest file of each group is kept under the hash-free name, the rest
are removed, and single files are renamed.`,
	Args: cobra.NoArgs,
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().String("dir", "", "record directory (default: instructions_dir)")
	dedupeCmd.Flags().Bool("merge", false, "merge duplicates and rename records")

	rootCmd.AddCommand(dedupeCmd)
}

func runDedupe(cmd *cobra.Command, args []string) error {
	dir := instructionsDir(cmd)
	merge, _ := cmd.Flags().GetBool("merge")

	if !merge {
		r, err := dedupe.FindDuplicates(dir)
		if err != nil {
			return err
		}
		for _, g := range r.Duplicates {
			fmt.Printf("%s (%d files)\n", g.Base, len(g.Files))
			for _, f := range g.Files {
				fmt.Printf("  %s\n", f)
			}
		}
		fmt.Printf("%d files, %d unique instructions, %d duplicates\n", r.Total, r.Unique, r.Extra)
		return nil
	}

	snap, err := snapshotter()
	if err != nil {
		return err
	}
	s, err := dedupe.MergeAndRename(dir, snap, os.Stdout)
	if err != nil {
		return err
	}
	if s.HasFailures() {
		return fmt.Errorf("%d group(s) failed", s.Failed)
	}
	return nil
}
