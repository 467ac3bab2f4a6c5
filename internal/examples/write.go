// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package examples

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/p2kb/internal/compiler"
	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
)

// ValidationScript is the shell script WriteExamples leaves next to the samples.
const ValidationScript = "validate_all.sh"

// WriteExamples writes each block as <id>.spin2 in outDir, wrapped with
// MakeTestable, plus a shell script that compiles every sample with
// pnut_ts and prints PASS or FAIL.
func WriteExamples(blocks []Block, outDir string, w io.Writer) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	script := []string{"#!/bin/bash", "", "# Validate all extracted code examples", ""}
	for _, b := range blocks {
		path := filepath.Join(outDir, b.ID+".spin2")
		if err := kbfile.WriteFile(path, []byte(MakeTestable(b.Code, b.ID)), 0o644, nil, ""); err != nil {
			return err
		}
		script = append(script,
			fmt.Sprintf("echo 'Testing %s...'", b.ID),
			fmt.Sprintf("if pnut_ts %s > /dev/null 2>&1; then", path),
			fmt.Sprintf("    echo '  PASS: %s'", b.ID),
			"else",
			fmt.Sprintf("    echo '  FAIL: %s'", b.ID),
			fmt.Sprintf("    echo '    Source: %s'", b.SourceFile),
			"fi",
			"",
		)
	}

	scriptPath := filepath.Join(outDir, ValidationScript)
	if err := kbfile.WriteFile(scriptPath, []byte(strings.Join(script, "\n")), 0o755, nil, ""); err != nil {
		return err
	}

	fmt.Fprintf(w, "extracted %d code examples to %s\n", len(blocks), outDir)
	fmt.Fprintf(w, "run %s to validate all examples\n", scriptPath)
	return nil
}

// ValidateSummary lists which samples compiled.
type ValidateSummary struct {
	Passed []string
	Failed []string
}

// Total returns the number of samples compiled.
func (s ValidateSummary) Total() int {
	return len(s.Passed) + len(s.Failed)
}

// HasFailures reports whether any sample failed to compile.
func (s ValidateSummary) HasFailures() bool {
	return len(s.Failed) > 0
}

// Validate compiles every .spin2 file in dir with c. Compiler output for
// failing samples is logged at debug level.
func Validate(ctx context.Context, dir string, c compiler.Compiler, w io.Writer) (ValidateSummary, error) {
	lg := kblog.WithComponent("examples")

	matches, err := filepath.Glob(filepath.Join(dir, "*.spin2"))
	if err != nil {
		return ValidateSummary{}, fmt.Errorf("listing samples: %w", err)
	}
	sort.Strings(matches)

	var s ValidateSummary
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		name := strings.TrimSuffix(filepath.Base(path), ".spin2")

		var out strings.Builder
		if err := c.Compile(ctx, path, &out); err != nil {
			lg.Debug().Str("sample", name).Str("output", out.String()).Msg("compile failed")
			fmt.Fprintf(w, "FAIL %s\n", name)
			s.Failed = append(s.Failed, name)
			continue
		}
		fmt.Fprintf(w, "PASS %s\n", name)
		s.Passed = append(s.Passed, name)
	}

	fmt.Fprintf(w, "%d passed, %d failed (%s)\n", len(s.Passed), len(s.Failed), c.Name())
	return s, nil
}
