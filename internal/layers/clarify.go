// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package layers

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/pkg/types"
)

const (
	clarificationSource = "Chip Gracey Clarifications"
	clarificationPrefix = "chip-instruction-clarifications-"

	// legacyClarificationKey is the key older runs wrote Layer 4 under.
	legacyClarificationKey = "layer4_chip"
)

var (
	sectionSplit  = regexp.MustCompile(`(?m)^###\s+\d+\.\s+`)
	sectionHeader = regexp.MustCompile(`^(\w+)\s+-\s+(.+)$`)
)

// ClarificationItem is one instruction's clarification.
type ClarificationItem struct {
	Mnemonic string
	types.Clarification
}

type clarificationMeta struct {
	Date   string `yaml:"date"`
	Source string `yaml:"source"`
}

// ParseClarifications reads one clarifications document. Sections start
// with "### N. MNEMONIC - Title" and carry **Syntax**, **Function**, and
// **Use Cases** fields. The date comes from front matter when present and
// otherwise from the file name.
func ParseClarifications(name string, doc []byte) ([]ClarificationItem, error) {
	var meta clarificationMeta
	body, err := frontmatter.Parse(bytes.NewReader(doc), &meta)
	if err != nil {
		return nil, fmt.Errorf("parsing front matter of %s: %w", name, err)
	}

	date := meta.Date
	if date == "" {
		date = strings.TrimSuffix(strings.TrimPrefix(filepath.Base(name), clarificationPrefix), ".md")
	}
	source := meta.Source
	if source == "" {
		source = clarificationSource
	}

	sections := sectionSplit.Split(strings.ReplaceAll(string(body), "\r\n", "\n"), -1)
	var items []ClarificationItem
	for _, sec := range sections[1:] {
		lines := strings.Split(strings.TrimSpace(sec), "\n")
		m := sectionHeader.FindStringSubmatch(lines[0])
		if m == nil {
			continue
		}
		c := parseSection(lines[1:])
		c.Title = m[2]
		c.Source = source
		c.Date = date
		items = append(items, ClarificationItem{Mnemonic: strings.ToUpper(m[1]), Clarification: c})
	}
	return items, nil
}

func parseSection(lines []string) types.Clarification {
	var (
		c        types.Clarification
		current  string
		function strings.Builder
		useCases strings.Builder
	)

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "**Syntax**:"):
			current = "syntax"
			c.Syntax = strings.TrimSpace(strings.TrimPrefix(line, "**Syntax**:"))
		case strings.HasPrefix(line, "**Function**:"):
			current = "function"
			function.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "**Function**:")))
		case strings.HasPrefix(line, "**Use Cases**:"):
			current = "use_cases"
		case strings.HasPrefix(line, "**"), strings.HasPrefix(line, "---"):
			current = ""
		case current == "function" && strings.TrimSpace(line) != "":
			if strings.HasPrefix(line, "- ") {
				function.WriteString("\n" + line)
			} else {
				function.WriteString(" " + line)
			}
		case current == "use_cases" && strings.HasPrefix(line, "- "):
			useCases.WriteString(line + "\n")
		}
	}

	c.Syntax = strings.Trim(c.Syntax, "`")
	c.Function = strings.TrimSpace(function.String())
	c.UseCases = strings.TrimSpace(useCases.String())
	return c
}

// ParseClarificationFiles parses each file in order. When several files
// clarify the same mnemonic the first one wins. Files that cannot be read
// or whose front matter does not parse are logged and skipped.
func ParseClarificationFiles(paths []string, w io.Writer) []ClarificationItem {
	lg := kblog.WithComponent("layers")

	seen := map[string]bool{}
	var out []ClarificationItem
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			lg.Warn().Err(err).Str("file", p).Msg("clarifications file unreadable")
			fmt.Fprintf(w, "skipped %s: %v\n", p, err)
			continue
		}
		items, err := ParseClarifications(p, data)
		if err != nil {
			lg.Warn().Err(err).Str("file", p).Msg("clarifications file unparsable")
			fmt.Fprintf(w, "skipped %s: %v\n", p, err)
			continue
		}
		for _, it := range items {
			if seen[it.Mnemonic] {
				continue
			}
			seen[it.Mnemonic] = true
			out = append(out, it)
		}
	}
	return out
}

// ApplyClarifications adds layer4_chip_clarifications to each mnemonic's
// record unless the record already has a Layer 4 block.
func ApplyClarifications(dir string, items []ClarificationItem, snap kbfile.Snapshotter, w io.Writer) (ApplySummary, error) {
	var s ApplySummary
	for _, it := range items {
		path := recordPath(dir, it.Mnemonic)

		doc, err := loadRecord(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", it.Mnemonic, err)
			s.Failed++
			continue
		}
		if doc == nil {
			fmt.Fprintf(w, "no file for %s\n", it.Mnemonic)
			s.NotFound++
			continue
		}

		root := doc.Root()
		if kbfile.MappingValue(root, types.LayerClarifications) != nil || kbfile.MappingValue(root, legacyClarificationKey) != nil {
			s.Present++
			continue
		}

		node, err := kbfile.NodeOf(it.Clarification)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", it.Mnemonic, err)
			s.Failed++
			continue
		}
		kbfile.SetMappingValue(root, types.LayerClarifications, node)

		if err := writeDocument(path, doc, snap, "layers clarifications"); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", it.Mnemonic, err)
			s.Failed++
			continue
		}
		fmt.Fprintf(w, "updated %s\n", it.Mnemonic)
		s.Updated++
	}

	fmt.Fprintf(w, "clarifications: %d updated, %d already present, %d without file, %d failed (of %d)\n",
		s.Updated, s.Present, s.NotFound, s.Failed, len(items))
	return s, nil
}
