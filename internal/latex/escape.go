// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package latex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// protectedEnvironments are emitted verbatim between \begin and \end.
var protectedEnvironments = map[string]bool{
	"equation": true,
	"align":    true,
	"array":    true,
	"matrix":   true,
	"tabular":  true,
	"figure":   true,
	"table":    true,
}

var (
	beginRe   = regexp.MustCompile(`\\begin\{(\w+)\}`)
	endRe     = regexp.MustCompile(`\\end\{(\w+)\}`)
	headerRe  = regexp.MustCompile(`^(#+\s+)(.*)$`)
	sectionRe = regexp.MustCompile(`^\\(section|subsection|subsubsection|paragraph|chapter|part)\{([^}]*)\}$`)

	// keepRe matches spans that pass through unescaped. Alternatives are
	// tried in order at each position, so section commands win over \par.
	keepRe = regexp.MustCompile(strings.Join([]string{
		"`[^`\n]+`",
		`\\(?:section|subsection|subsubsection|paragraph|chapter|part)\{[^}]*\}`,
		`\\(?:textbf|textit|texttt|emph|underline|vspace|hspace|ref|label|cite|pageref|eqref)\{[^}]*\}`,
		`\\(?:begin|end)\{(?:itemize|enumerate|description)\}`,
		`\\(?:item|par|newline|noindent|centering|raggedright|raggedleft|normalsize|footnotesize|scriptsize|tiny|small|large|Large|huge|Huge|quad|qquad|bigskip|medskip|smallskip|ldots|dots|ddag|dag|copyright|trademark|chapterseparator)\b`,
		`\\\\`,
		`\\[,:;!()\[\]]`,
	}, "|"))
)

// Escape copies Markdown from r to w with LaTeX special characters escaped.
// Fenced code blocks, protected math and float environments, inline code
// and common LaTeX commands pass through unchanged.
func Escape(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	var inCode, inEnv bool
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			body, eol := splitEOL(line)
			out := body
			switch trimmed := strings.TrimSpace(body); {
			case strings.HasPrefix(trimmed, "```"):
				inCode = !inCode
			case inCode:
			case strings.HasPrefix(body, `\begin{`):
				if m := beginRe.FindStringSubmatch(body); m != nil && protectedEnvironments[m[1]] {
					inEnv = true
				}
			case strings.HasPrefix(body, `\end{`):
				if m := endRe.FindStringSubmatch(body); m != nil && protectedEnvironments[m[1]] {
					inEnv = false
				}
			case inEnv:
			default:
				out = EscapeLine(body)
			}
			if _, werr := bw.WriteString(out + eol); werr != nil {
				return fmt.Errorf("writing output: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// EscapeLine escapes one line of running text. Markdown headers keep their
// leading hashes and have their content escaped.
func EscapeLine(line string) string {
	if m := headerRe.FindStringSubmatch(line); m != nil {
		return m[1] + escapeText(m[2])
	}

	var b strings.Builder
	last := 0
	for _, loc := range keepRe.FindAllStringIndex(line, -1) {
		b.WriteString(escapeText(line[last:loc[0]]))
		span := line[loc[0]:loc[1]]
		if m := sectionRe.FindStringSubmatch(span); m != nil {
			span = `\` + m[1] + "{" + escapeSectionTitle(m[2]) + "}"
		}
		b.WriteString(span)
		last = loc[1]
	}
	b.WriteString(escapeText(line[last:]))
	return b.String()
}

// escapeText replaces each special character in a single pass so that
// replacements are never escaped twice.
func escapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch ch {
		case '\\':
			b.WriteString(`\textbackslash{}`)
		case '^':
			b.WriteString(`\^{}`)
		case '{', '}', '#', '$', '%', '&', '_':
			b.WriteByte('\\')
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// escapeSectionTitle escapes a section title. Braces and backslashes are
// left alone so nested commands survive.
func escapeSectionTitle(s string) string {
	var b strings.Builder
	for _, ch := range s {
		switch ch {
		case '^':
			b.WriteString(`\^{}`)
		case '#', '$', '%', '&', '_':
			b.WriteByte('\\')
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func splitEOL(line string) (string, string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}
