// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/spin2"
)

var spin2Cmd = &cobra.Command{
	Use:   "spin2",
	Short: "Build Spin2 method records",
}

var spin2ExtractCmd = &cobra.Command{
	Use:   "extract <markdown>",
	Short: "Write spin2_<name>.yaml for each documented method",
	Long: `Extract scans the Spin2 documentation for method signatures such as
WAITMS(Milliseconds), using ### headings as categories and a following
' line as the description, and writes one record per method.`,
	Args: cobra.ExactArgs(1),
	RunE: runSpin2Extract,
}

func init() {
	spin2ExtractCmd.Flags().String("dir", "", "output directory (default: spin2_dir)")

	spin2Cmd.AddCommand(spin2ExtractCmd)
	rootCmd.AddCommand(spin2Cmd)
}

func runSpin2Extract(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		kb := loadConfig().KnowledgeBase
		dir = kb.Resolve(kb.Spin2Dir)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	methods := spin2.ExtractMethods(string(data))
	if len(methods) == 0 {
		return fmt.Errorf("no methods found in %s", args[0])
	}

	snap, err := snapshotter()
	if err != nil {
		return err
	}
	s, err := spin2.WriteMethods(methods, dir, snap, os.Stdout)
	if err != nil {
		return err
	}
	if s.HasFailures() {
		return fmt.Errorf("%d method(s) invalid, %d failed", s.Invalid, s.Failed)
	}
	return nil
}
