// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/kbfile"
	"github.com/pdiddy/p2kb/internal/latex"
)

var latexCmd = &cobra.Command{
	Use:   "latex",
	Short: "Check and escape LaTeX sources",
}

var latexBracesCmd = &cobra.Command{
	Use:   "braces <file.tex>",
	Short: "Report unbalanced braces and command definitions",
	Args:  cobra.ExactArgs(1),
	RunE:  runLatexBraces,
}

var latexEscapeCmd = &cobra.Command{
	Use:   "escape <input> [output]",
	Short: "Escape LaTeX special characters outside code and math",
	Long: `Escape rewrites text so that \ ^ { } # $ % & _ are escaped, leaving
fenced code, protected environments (equation, align, array, matrix,
tabular, figure, table), inline code, and formatting commands as written.
Without an output path the result goes to stdout.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLatexEscape,
}

func init() {
	latexCmd.AddCommand(latexBracesCmd)
	latexCmd.AddCommand(latexEscapeCmd)
	rootCmd.AddCommand(latexCmd)
}

func runLatexBraces(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := latex.CheckBraces(f)
	if err != nil {
		return fmt.Errorf("checking %s: %w", args[0], err)
	}
	r.WriteText(os.Stdout)
	if !r.Balanced() {
		return fmt.Errorf("%s: %s", args[0], r.Verdict())
	}
	return nil
}

func runLatexEscape(cmd *cobra.Command, args []string) error {
	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	if len(args) == 1 {
		return latex.Escape(in, os.Stdout)
	}

	var buf bytes.Buffer
	if err := latex.Escape(in, &buf); err != nil {
		return fmt.Errorf("escaping %s: %w", args[0], err)
	}
	snap, err := snapshotter()
	if err != nil {
		return err
	}
	if err := kbfile.WriteFile(args[1], buf.Bytes(), 0o644, snap, "latex escape"); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[1])
	return nil
}
