// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package examples pulls fenced code samples out of Markdown manuals,
// turns fragments into compilable programs, and checks them with a
// Spin2/PASM2 compiler.
package examples

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultLanguage is the fence info string samples are taken from.
const DefaultLanguage = "pasm2"

// Block is one extracted code sample.
type Block struct {
	ID         string
	SourceFile string
	Code       string
}

// ExtractBlocks returns the fenced code blocks tagged lang, in document
// order. Trailing whitespace and blank lines are dropped. IDs number the
// lang blocks from 1, so an empty block still uses up its number.
func ExtractBlocks(markdown []byte, lang, sourceName string) []Block {
	if lang == "" {
		lang = DefaultLanguage
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var blocks []Block
	n := 0
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := node.(*ast.FencedCodeBlock)
		if !ok || string(fence.Language(markdown)) != lang {
			return ast.WalkContinue, nil
		}
		n++

		var lines []string
		segs := fence.Lines()
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			line := strings.TrimRight(string(seg.Value(markdown)), " \t\r\n")
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			blocks = append(blocks, Block{
				ID:         fmt.Sprintf("example_%03d", n),
				SourceFile: sourceName,
				Code:       strings.Join(lines, "\n"),
			})
		}
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// IsCompleteProgram reports whether code carries its own ORG directive.
func IsCompleteProgram(code string) bool {
	lower := strings.ToLower(code)
	return strings.Contains(lower, "org ") || strings.Contains(lower, "org\t")
}

// MakeTestable returns code unchanged when it is a complete program and
// otherwise wraps the fragment in a minimal program ending in a jump to
// itself.
func MakeTestable(code, id string) string {
	if IsCompleteProgram(code) {
		return code
	}
	return "{\n" +
		"' Generated test program for " + id + "\n" +
		"        org     0\n" +
		"        \n" +
		code + "\n" +
		"        \n" +
		"        ' Minimal ending to make it compilable\n" +
		"        jmp     #$\n" +
		"}\n"
}
