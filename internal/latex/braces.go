// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package latex checks brace balance in generated LaTeX and escapes
// Markdown text for LaTeX output.
package latex

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// reportLimit caps how many positions of each kind a report keeps.
const reportLimit = 10

// Position is a 1-based line and column.
type Position struct {
	Line int
	Col  int
}

// Unclosed is an opening brace that never closed, with its line's text.
type Unclosed struct {
	Position
	Text string
}

// DefinitionIssue is a single-line \newcommand or \renewcommand whose
// brace counts differ.
type DefinitionIssue struct {
	Line  int
	Open  int
	Close int
	Text  string
}

// EnvironmentIssue is a \newenvironment definition that never balanced.
type EnvironmentIssue struct {
	StartLine int
	EndLine   int
	FirstLine string
}

// BraceReport is the result of CheckBraces. Unmatched and Unclosed keep
// the first reportLimit entries; the totals count all of them.
type BraceReport struct {
	Open  int
	Close int

	Unmatched      []Position
	UnmatchedTotal int

	Unclosed      []Unclosed
	UnclosedTotal int

	Commands     []DefinitionIssue
	Environments []EnvironmentIssue
}

// Balanced reports whether every brace pairs up.
func (r BraceReport) Balanced() bool {
	return r.Open == r.Close && r.UnmatchedTotal == 0 && r.UnclosedTotal == 0
}

// Verdict summarises the report in one line.
func (r BraceReport) Verdict() string {
	if r.Balanced() {
		return "balanced"
	}
	switch {
	case r.Open > r.Close:
		return fmt.Sprintf("need %d more closing braces", r.Open-r.Close)
	case r.Close > r.Open:
		return fmt.Sprintf("need %d more opening braces", r.Close-r.Open)
	}
	return "braces out of order"
}

// CheckBraces scans LaTeX source for unmatched braces and for command and
// environment definitions whose braces do not balance.
func CheckBraces(r io.Reader) (BraceReport, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return BraceReport{}, fmt.Errorf("reading source: %w", err)
	}

	var (
		rep   BraceReport
		stack []Position
	)
	for i, line := range lines {
		col := 0
		for _, ch := range line {
			col++
			switch ch {
			case '{':
				rep.Open++
				stack = append(stack, Position{Line: i + 1, Col: col})
			case '}':
				rep.Close++
				if len(stack) == 0 {
					rep.UnmatchedTotal++
					if len(rep.Unmatched) < reportLimit {
						rep.Unmatched = append(rep.Unmatched, Position{Line: i + 1, Col: col})
					}
					continue
				}
				stack = stack[:len(stack)-1]
			}
		}
	}

	rep.UnclosedTotal = len(stack)
	for _, p := range stack {
		if len(rep.Unclosed) == reportLimit {
			break
		}
		text := strings.TrimRight(lines[p.Line-1], " \t")
		if r := []rune(text); len(r) > 80 {
			text = string(r[:80])
		}
		rep.Unclosed = append(rep.Unclosed, Unclosed{Position: p, Text: text})
	}

	rep.Commands = checkCommands(lines)
	rep.Environments = checkEnvironments(lines)
	return rep, nil
}

func checkCommands(lines []string) []DefinitionIssue {
	var issues []DefinitionIssue
	for i, line := range lines {
		if !strings.Contains(line, `\newcommand`) && !strings.Contains(line, `\renewcommand`) {
			continue
		}
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, "{%") || strings.HasSuffix(trimmed, "{") {
			continue
		}
		open, closed := strings.Count(line, "{"), strings.Count(line, "}")
		if open != closed {
			issues = append(issues, DefinitionIssue{Line: i + 1, Open: open, Close: closed, Text: strings.TrimSpace(line)})
		}
	}
	return issues
}

// checkEnvironments follows each environment definition until its net
// brace depth returns to zero. A definition still open at the end of the
// file is reported.
func checkEnvironments(lines []string) []EnvironmentIssue {
	var (
		issues []EnvironmentIssue
		inDef  bool
		start  int
		depth  int
		opens  int
		closes int
	)
	for i, line := range lines {
		o, c := strings.Count(line, "{"), strings.Count(line, "}")
		switch {
		case strings.Contains(line, `\newenvironment`) || strings.Contains(line, `\renewenvironment`):
			inDef, start = true, i
			depth, opens, closes = o-c, o, c
		case inDef:
			depth += o - c
			opens += o
			closes += c
		default:
			continue
		}
		if depth == 0 {
			if opens != closes {
				issues = append(issues, EnvironmentIssue{StartLine: start + 1, EndLine: i + 1, FirstLine: strings.TrimSpace(lines[start])})
			}
			inDef = false
		}
	}
	if inDef {
		issues = append(issues, EnvironmentIssue{StartLine: start + 1, EndLine: len(lines), FirstLine: strings.TrimSpace(lines[start])})
	}
	return issues
}

// WriteText prints the report.
func (r BraceReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Total braces: %d open, %d close\n", r.Open, r.Close)
	fmt.Fprintf(w, "Difference: %d\n", r.Open-r.Close)

	if r.UnclosedTotal > 0 {
		fmt.Fprintf(w, "\nUnclosed braces: %d\n", r.UnclosedTotal)
		for _, u := range r.Unclosed {
			fmt.Fprintf(w, "  Line %d, Col %d: %s\n", u.Line, u.Col, u.Text)
		}
		if more := r.UnclosedTotal - len(r.Unclosed); more > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", more)
		}
	}

	if r.UnmatchedTotal > 0 {
		fmt.Fprintf(w, "\nClosing braces with no opening brace: %d\n", r.UnmatchedTotal)
		for _, p := range r.Unmatched {
			fmt.Fprintf(w, "  Line %d, Col %d\n", p.Line, p.Col)
		}
		if more := r.UnmatchedTotal - len(r.Unmatched); more > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", more)
		}
	}

	for _, c := range r.Commands {
		fmt.Fprintf(w, "\nLine %d: unbalanced command definition (%d open, %d close)\n  %s\n", c.Line, c.Open, c.Close, c.Text)
	}
	for _, e := range r.Environments {
		fmt.Fprintf(w, "\nLines %d-%d: unbalanced environment definition\n  %s\n", e.StartLine, e.EndLine, e.FirstLine)
	}

	fmt.Fprintf(w, "\n%s\n", r.Verdict())
}
