// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package compiler detects and runs a Spin2/PASM2 compiler so extracted
// code samples can be checked.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
)

const (
	binPnut     = "pnut_ts"
	binFlexspin = "flexspin"
)

// Compiler compiles one source file.
type Compiler interface {
	// Name returns the compiler binary name.
	Name() string

	// Available reports whether the binary is on PATH and, when the
	// compiler has a probe command, that the probe succeeds.
	Available() bool

	// Compile builds path. Compiler output is written to out. A non-nil
	// error means the source did not compile.
	Compile(ctx context.Context, path string, out io.Writer) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	RunCombined(ctx context.Context, name string, args []string, out io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) RunCombined(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

// compiler implements Compiler for one binary. The supported compilers
// differ only in binary name, probe, and the flags placed before the
// source path.
type compiler struct {
	bin       string
	probeArgs []string // nil means LookPath alone decides availability
	flags     []string
	exec      executor
}

func (c *compiler) Name() string { return c.bin }

func (c *compiler) Available() bool {
	if _, err := c.exec.LookPath(c.bin); err != nil {
		return false
	}
	if c.probeArgs == nil {
		return true
	}
	return c.exec.RunSilent(c.bin, c.probeArgs...) == nil
}

func (c *compiler) Compile(ctx context.Context, path string, out io.Writer) error {
	args := make([]string, 0, len(c.flags)+1)
	args = append(args, c.flags...)
	args = append(args, path)

	if out == nil {
		out = &bytes.Buffer{}
	}
	if err := c.exec.RunCombined(ctx, c.bin, args, out); err != nil {
		return fmt.Errorf("%s %s: %w", c.bin, path, err)
	}
	return nil
}

func newPnut(exec executor) *compiler {
	return &compiler{bin: binPnut, exec: exec}
}

func newFlexspin(exec executor) *compiler {
	return &compiler{
		bin:       binFlexspin,
		probeArgs: []string{"--version"},
		flags:     []string{"-2", "-q"},
		exec:      exec,
	}
}

var defaultExec = &osExecutor{}

// Detect tries pnut_ts first and falls back to flexspin. It returns an
// error when neither is available.
func Detect() (Compiler, error) {
	return detect(defaultExec)
}

func detect(exec executor) (Compiler, error) {
	pnut := newPnut(exec)
	if pnut.Available() {
		return pnut, nil
	}

	flex := newFlexspin(exec)
	if flex.Available() {
		return flex, nil
	}

	return nil, fmt.Errorf(
		"no compiler available: neither %s nor %s found or operational",
		binPnut, binFlexspin,
	)
}
