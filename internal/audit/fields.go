// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit reports on the shape of knowledge-base records: which
// top-level fields they use and whether instruction records match the
// record schema.
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/p2kb/internal/kbfile"
)

// DefaultSkip lists file stems that hold overviews rather than records.
var DefaultSkip = []string{"concepts", "patterns", "idioms"}

// Core fields expected in every record of each kind.
var (
	CoreInstructionFields = []string{"instruction", "syntax", "encoding", "timing", "group", "description"}
	CoreDirectiveFields   = []string{"directive", "syntax", "description", "group"}
)

// renames maps legacy field names to their standard name.
var renames = []Rename{
	{From: "detailed_description", To: "description"},
	{From: "brief_description", To: "description"},
	{From: "long_description", To: "description"},
	{From: "flags", To: "flags_affected"},
	{From: "category", To: "group"},
}

// FieldCount is how often one top-level key appears.
type FieldCount struct {
	Name     string
	Count    int
	Percent  float64
	Examples []string
}

// FieldPair is two field names where one contains the other.
type FieldPair struct {
	A, B           string
	CountA, CountB int
}

// Rename is a suggested field rename and the files it affects.
type Rename struct {
	From  string
	To    string
	Count int
}

// CoreCoverage is how many files carry a core field.
type CoreCoverage struct {
	Field   string
	Count   int
	Percent float64
	Status  string
}

// FieldReport is the result of FieldUsage.
type FieldReport struct {
	Files           int
	Fields          []FieldCount
	Inconsistencies []FieldPair
	Errors          []string

	counts map[string]int
}

// FieldUsage counts the top-level keys of every mapping document directly
// under dir. Files whose stem is in skip are ignored.
func FieldUsage(dir string, skip []string) (FieldReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return FieldReport{}, fmt.Errorf("reading %s: %w", dir, err)
	}
	skipped := map[string]bool{}
	for _, s := range skip {
		skipped[s] = true
	}

	rep := FieldReport{counts: map[string]int{}}
	examples := map[string][]string{}
	var order []string

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		stem := strings.TrimSuffix(name, ".yaml")
		if skipped[stem] {
			continue
		}
		doc, err := kbfile.ReadDocument(filepath.Join(dir, name))
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		rep.Files++
		root := doc.Root()
		for i := 0; i+1 < len(root.Content); i += 2 {
			key := root.Content[i].Value
			if rep.counts[key] == 0 {
				order = append(order, key)
			}
			rep.counts[key]++
			if len(examples[key]) < 3 {
				examples[key] = append(examples[key], stem)
			}
		}
	}

	for _, key := range order {
		rep.Fields = append(rep.Fields, FieldCount{
			Name:     key,
			Count:    rep.counts[key],
			Percent:  percent(rep.counts[key], rep.Files),
			Examples: examples[key],
		})
	}
	sort.SliceStable(rep.Fields, func(i, j int) bool {
		if rep.Fields[i].Count != rep.Fields[j].Count {
			return rep.Fields[i].Count > rep.Fields[j].Count
		}
		return rep.Fields[i].Name < rep.Fields[j].Name
	})

	for i, a := range order {
		for _, b := range order[i+1:] {
			if strings.Contains(a, b) || strings.Contains(b, a) {
				rep.Inconsistencies = append(rep.Inconsistencies, FieldPair{A: a, B: b, CountA: rep.counts[a], CountB: rep.counts[b]})
			}
		}
	}
	return rep, nil
}

// Core reports coverage of the given fields.
func (r FieldReport) Core(fields []string) []CoreCoverage {
	out := make([]CoreCoverage, 0, len(fields))
	for _, f := range fields {
		n := r.counts[f]
		p := percent(n, r.Files)
		status := "✗"
		switch {
		case p > 90:
			status = "✓"
		case p > 50:
			status = "⚠"
		}
		out = append(out, CoreCoverage{Field: f, Count: n, Percent: p, Status: status})
	}
	return out
}

// Renames lists the standard renames that apply to fields in use.
func (r FieldReport) Renames() []Rename {
	var out []Rename
	for _, rn := range renames {
		if n := r.counts[rn.From]; n > 0 {
			rn.Count = n
			out = append(out, rn)
		}
	}
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// WriteText prints the report with coverage of core.
func (r FieldReport) WriteText(w io.Writer, title string, core []string) {
	fmt.Fprintf(w, "%s field analysis\n", title)
	fmt.Fprintf(w, "Total files analyzed: %d\n\n", r.Files)
	for _, f := range r.Fields {
		fmt.Fprintf(w, "  %-30s %4d (%5.1f%%) - e.g., %s\n", f.Name, f.Count, f.Percent, strings.Join(f.Examples, ", "))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "failed  %s\n", e)
	}

	if len(r.Inconsistencies) > 0 {
		fmt.Fprintf(w, "\nPotential inconsistencies:\n")
		for _, p := range r.Inconsistencies {
			fmt.Fprintf(w, "  - '%s' (%d) vs '%s' (%d)\n", p.A, p.CountA, p.B, p.CountB)
		}
	}

	if len(core) > 0 {
		fmt.Fprintf(w, "\nCore fields:\n")
		for _, c := range r.Core(core) {
			fmt.Fprintf(w, "  %s %-20s - %d/%d (%.1f%%)\n", c.Status, c.Field, c.Count, r.Files, c.Percent)
		}
	}

	if rn := r.Renames(); len(rn) > 0 {
		fmt.Fprintf(w, "\nRecommended renames:\n")
		for _, x := range rn {
			fmt.Fprintf(w, "  '%s' -> '%s' (%d files)\n", x.From, x.To, x.Count)
		}
	}
}
