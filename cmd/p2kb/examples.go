// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/compiler"
	"github.com/pdiddy/p2kb/internal/examples"
	"github.com/pdiddy/p2kb/internal/kbfile"
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Extract, compile, and annotate Markdown code samples",
}

var examplesExtractCmd = &cobra.Command{
	Use:   "extract <markdown>",
	Short: "Write each fenced code sample to a .spin2 file",
	Long: `Extract writes every fenced code block tagged with --lang to
<out>/example_NNN.spin2. Fragments without an org directive are wrapped
in a minimal test program. A validate_all.sh script is written alongside.`,
	Args: cobra.ExactArgs(1),
	RunE: runExamplesExtract,
}

var examplesValidateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Compile every .spin2 sample with pnut_ts or flexspin",
	Args:  cobra.ExactArgs(1),
	RunE:  runExamplesValidate,
}

var examplesUppercaseCmd = &cobra.Command{
	Use:   "uppercase <markdown>",
	Short: "Bold the first known instruction on each code line",
	Long: `Uppercase rewrites fenced code blocks so the first known instruction on
each non-comment line reads **WORD**. The result goes to stdout unless
--write is given. Mnemonics from the instruction records are added to the
built-in set.`,
	Args: cobra.ExactArgs(1),
	RunE: runExamplesUppercase,
}

var examplesStubsCmd = &cobra.Command{
	Use:   "stubs <methods.txt>",
	Short: "Generate PRI stubs for undefined methods",
	Args:  cobra.ExactArgs(1),
	RunE:  runExamplesStubs,
}

func init() {
	examplesExtractCmd.Flags().String("lang", examples.DefaultLanguage, "fence info string to extract")
	examplesExtractCmd.Flags().String("out", "test_examples", "output directory")
	examplesUppercaseCmd.Flags().Bool("write", false, "rewrite the file in place")
	examplesUppercaseCmd.Flags().String("dir", "", "record directory for extra mnemonics (default: instructions_dir)")
	examplesStubsCmd.Flags().StringP("output", "o", "", "write the stub file here instead of stdout")

	examplesCmd.AddCommand(examplesExtractCmd)
	examplesCmd.AddCommand(examplesValidateCmd)
	examplesCmd.AddCommand(examplesUppercaseCmd)
	examplesCmd.AddCommand(examplesStubsCmd)
	rootCmd.AddCommand(examplesCmd)
}

func runExamplesExtract(cmd *cobra.Command, args []string) error {
	lang, _ := cmd.Flags().GetString("lang")
	out, _ := cmd.Flags().GetString("out")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	blocks := examples.ExtractBlocks(data, lang, filepath.Base(args[0]))
	if len(blocks) == 0 {
		fmt.Printf("no %s code blocks in %s\n", lang, args[0])
		return nil
	}
	return examples.WriteExamples(blocks, out, os.Stdout)
}

func runExamplesValidate(cmd *cobra.Command, args []string) error {
	c, err := compiler.Detect()
	if err != nil {
		return err
	}
	s, err := examples.Validate(context.Background(), args[0], c, os.Stdout)
	if err != nil {
		return err
	}
	if s.HasFailures() {
		return fmt.Errorf("%d of %d example(s) failed to compile", len(s.Failed), s.Total())
	}
	return nil
}

func runExamplesUppercase(cmd *cobra.Command, args []string) error {
	write, _ := cmd.Flags().GetBool("write")

	set := examples.DefaultInstructionSet()
	if err := set.AddRecords(instructionsDir(cmd)); err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	out := examples.Uppercase(string(data), set)

	if !write {
		fmt.Print(out)
		return nil
	}
	if out == string(data) {
		fmt.Printf("unchanged %s\n", args[0])
		return nil
	}
	snap, err := snapshotter()
	if err != nil {
		return err
	}
	if err := kbfile.WriteFile(args[0], []byte(out), 0o644, snap, "examples uppercase"); err != nil {
		return err
	}
	fmt.Printf("updated %s\n", args[0])
	return nil
}

func runExamplesStubs(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	names, err := examples.ReadMethodList(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	stubs := examples.GenerateStubs(names)

	if output == "" {
		fmt.Print(stubs)
		return nil
	}
	if err := kbfile.WriteFile(output, []byte(stubs), 0o644, nil, ""); err != nil {
		return err
	}
	fmt.Printf("wrote %d stubs to %s\n", len(names), output)
	return nil
}
