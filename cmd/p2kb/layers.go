// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/layers"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Merge datasheet timing and clarifications into instruction records",
}

var layersTimingCmd = &cobra.Command{
	Use:   "timing <datasheet.md>",
	Short: "Add layer2_datasheet timing from the datasheet Markdown",
	Long: `Timing reads instruction tables and group timing declarations from the
datasheet Markdown and writes layer2_datasheet.timing into each matching
pasm2_<mnemonic>.yaml. Records that already have timing are left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: runLayersTiming,
}

var layersClarifyCmd = &cobra.Command{
	Use:   "clarify <clarifications.md>...",
	Short: "Add layer4_chip_clarifications from clarification documents",
	Long: `Clarify parses numbered instruction sections from each document and adds
a layer4_chip_clarifications block to records that do not have one. When
several documents cover the same mnemonic the first one wins.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLayersClarify,
}

var layersAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report Layer 1-4 completeness across instruction records",
	Args:  cobra.NoArgs,
	RunE:  runLayersAudit,
}

func init() {
	for _, c := range []*cobra.Command{layersTimingCmd, layersClarifyCmd, layersAuditCmd} {
		c.Flags().String("dir", "", "record directory (default: instructions_dir)")
	}
	layersAuditCmd.Flags().Int("expected", 0, "expected instruction count (default: audit.expected_instructions)")

	layersCmd.AddCommand(layersTimingCmd)
	layersCmd.AddCommand(layersClarifyCmd)
	layersCmd.AddCommand(layersAuditCmd)
	rootCmd.AddCommand(layersCmd)
}

func runLayersTiming(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading datasheet: %w", err)
	}
	timings := layers.ParseDatasheet(string(data))
	if len(timings) == 0 {
		return fmt.Errorf("no instruction timing found in %s", args[0])
	}

	snap, err := snapshotter()
	if err != nil {
		return err
	}
	s, err := layers.ApplyTiming(instructionsDir(cmd), timings, snap, os.Stdout)
	if err != nil {
		return err
	}
	if s.HasFailures() {
		return fmt.Errorf("%d record(s) failed", s.Failed)
	}
	return nil
}

func runLayersClarify(cmd *cobra.Command, args []string) error {
	items := layers.ParseClarificationFiles(args, os.Stdout)

	snap, err := snapshotter()
	if err != nil {
		return err
	}
	s, err := layers.ApplyClarifications(instructionsDir(cmd), items, snap, os.Stdout)
	if err != nil {
		return err
	}
	if s.HasFailures() {
		return fmt.Errorf("%d record(s) failed", s.Failed)
	}
	return nil
}

func runLayersAudit(cmd *cobra.Command, args []string) error {
	expected, _ := cmd.Flags().GetInt("expected")
	if expected == 0 {
		expected = loadConfig().Audit.ExpectedInstructions
	}

	r, err := layers.Audit(instructionsDir(cmd), expected)
	if err != nil {
		return err
	}
	r.WriteText(os.Stdout)
	return nil
}
