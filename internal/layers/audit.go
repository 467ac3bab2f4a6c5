// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package layers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/pkg/types"
)

// DefaultExpectedInstructions is the instruction count coverage is
// measured against.
const DefaultExpectedInstructions = 491

// Completeness categories. Records whose tiers are not a prefix of 1-2-3-4
// (for example 1 and 3 only) are counted as partial.
const (
	CategoryEmpty         = "empty"
	CategoryMissingLayer1 = "missing_layer1"
	CategoryLayer1Only    = "layer1_only"
	CategoryLayer12       = "layer1_2"
	CategoryLayer123      = "layer1_2_3"
	CategoryLayer1234     = "layer1_2_3_4"
	CategoryPartial       = "partial"
)

// Categories lists the completeness categories in report order.
var Categories = []string{
	CategoryEmpty, CategoryMissingLayer1, CategoryLayer1Only,
	CategoryLayer12, CategoryLayer123, CategoryLayer1234, CategoryPartial,
}

// FileLayers describes one record's tiers.
type FileLayers struct {
	Name     string
	Mnemonic string
	Layers   []int
	Size     int64
}

// AuditReport summarises tier completeness across a records directory.
type AuditReport struct {
	Total    int
	Expected int

	// Categories counts files per completeness category.
	Categories map[string]int

	// Coverage counts files carrying each tier; index 0 is Layer 1.
	Coverage [4]int

	// HashSuffixed counts file names still ending in an 8-character hash.
	HashSuffixed int

	Files []FileLayers
}

func categorize(layers []int) string {
	switch {
	case len(layers) == 0:
		return CategoryEmpty
	case layers[0] != 1:
		return CategoryMissingLayer1
	}
	prefix := []string{CategoryLayer1Only, CategoryLayer12, CategoryLayer123, CategoryLayer1234}
	for i, l := range layers {
		if l != i+1 {
			return CategoryPartial
		}
	}
	return prefix[len(layers)-1]
}

func hashSuffixed(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndex(stem, "_")
	return i >= 0 && len(stem)-i-1 == 8
}

// Audit reads every pasm2_*.yaml in dir and reports which tiers each
// record carries. A tier counts as present when its key holds a non-empty
// value. Unreadable files count as empty.
func Audit(dir string, expected int) (AuditReport, error) {
	lg := kblog.WithComponent("layers")
	if expected <= 0 {
		expected = DefaultExpectedInstructions
	}

	matches, err := filepath.Glob(filepath.Join(dir, "pasm2_*.yaml"))
	if err != nil {
		return AuditReport{}, fmt.Errorf("listing records: %w", err)
	}
	sort.Strings(matches)

	r := AuditReport{Expected: expected, Categories: map[string]int{}}
	for _, path := range matches {
		name := filepath.Base(path)
		r.Total++
		if hashSuffixed(name) {
			r.HashSuffixed++
		}

		fl := FileLayers{Name: name}
		if info, err := os.Stat(path); err == nil {
			fl.Size = info.Size()
		}

		doc, err := kbfile.ReadDocument(path)
		if err != nil {
			lg.Debug().Err(err).Str("file", name).Msg("record unreadable")
			r.Categories[CategoryEmpty]++
			r.Files = append(r.Files, fl)
			continue
		}

		fl.Mnemonic = doc.String(types.LayerCSV, "mnemonic")
		for i, key := range types.LayerKeys {
			if !kbfile.IsEmpty(kbfile.MappingValue(doc.Root(), key)) {
				fl.Layers = append(fl.Layers, i+1)
				r.Coverage[i]++
			}
		}
		r.Categories[categorize(fl.Layers)]++
		r.Files = append(r.Files, fl)
	}
	return r, nil
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}

// WriteText prints the report.
func (r AuditReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Total files: %d\n", r.Total)
	fmt.Fprintf(w, "Expected: %d instructions\n", r.Expected)
	fmt.Fprintf(w, "Coverage: %d/%d = %.1f%%\n", r.Total, r.Expected, percent(r.Total, r.Expected))

	fmt.Fprintln(w, "\nLayer completeness:")
	for _, c := range Categories {
		fmt.Fprintf(w, "  %-16s %d\n", c, r.Categories[c])
	}

	fmt.Fprintln(w, "\nLayer coverage:")
	for i, key := range types.LayerKeys {
		fmt.Fprintf(w, "  %-28s %d/%d = %.1f%%\n", key, r.Coverage[i], r.Total, percent(r.Coverage[i], r.Total))
	}

	fmt.Fprintf(w, "\nFiles with hash suffix: %d/%d\n", r.HashSuffixed, r.Total)
}
