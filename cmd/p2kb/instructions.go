// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/instructions"
)

var instructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "Build Layer 1 instruction records from the instruction spreadsheet",
}

var instructionsExtractCmd = &cobra.Command{
	Use:   "extract <csv>",
	Short: "Write one YAML record per spreadsheet row",
	Long: `Extract reads the instruction spreadsheet export and writes one
layer1_csv record per instruction variant to <out>/instructions/pasm2/,
together with csv-to-yaml-mapping.yaml and extraction-audit.yaml in <out>.
Rows without a usable mnemonic are recorded in the audit log.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstructionsExtract,
}

var instructionsValidateCmd = &cobra.Command{
	Use:   "validate <csv>",
	Short: "Compare record file names with the spreadsheet's mnemonics",
	Long: `Validate lists record files that name conditionals, pseudo-instructions
or unknown words rather than real instructions, and spreadsheet mnemonics
that have no record. When invalid files exist a removal script is written
next to them.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstructionsValidate,
}

func init() {
	instructionsExtractCmd.Flags().String("out", "", "output root (default: knowledge-base root)")
	instructionsValidateCmd.Flags().String("dir", "", "record directory (default: instructions_dir)")

	instructionsCmd.AddCommand(instructionsExtractCmd)
	instructionsCmd.AddCommand(instructionsValidateCmd)
	rootCmd.AddCommand(instructionsCmd)
}

func runInstructionsExtract(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = loadConfig().KnowledgeBase.Root
	}
	snap, err := snapshotter()
	if err != nil {
		return err
	}

	res, err := instructions.Extract(args[0], out, snap, os.Stdout)
	if err != nil {
		return err
	}
	if res.HasFailures() {
		return fmt.Errorf("%d record(s) failed", res.Errors)
	}
	return nil
}

func runInstructionsValidate(cmd *cobra.Command, args []string) error {
	check, err := instructions.ValidateAgainstCSV(args[0], instructionsDir(cmd), os.Stdout)
	if err != nil {
		return err
	}
	if check.HasFailures() {
		return fmt.Errorf("%d invalid file(s), %d missing instruction(s)", len(check.Invalid()), len(check.Missing))
	}
	return nil
}

// instructionsDir returns --dir or the configured instructions directory.
func instructionsDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	kb := loadConfig().KnowledgeBase
	return kb.Resolve(kb.InstructionsDir)
}
