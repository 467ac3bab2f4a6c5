// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package layers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/pkg/types"
)

const datasheetSource = "P2 Datasheet v35"

// now is replaced in tests.
var now = time.Now

// ApplySummary counts the outcome of ApplyTiming or ApplyClarifications.
type ApplySummary struct {
	Updated  int
	Present  int
	NotFound int
	Failed   int
}

// Total returns the number of mnemonics considered.
func (s ApplySummary) Total() int {
	return s.Updated + s.Present + s.NotFound + s.Failed
}

// HasFailures reports whether any record could not be read or written.
func (s ApplySummary) HasFailures() bool {
	return s.Failed > 0
}

func recordPath(dir, mnemonic string) string {
	return filepath.Join(dir, "pasm2_"+strings.ToLower(mnemonic)+".yaml")
}

// loadRecord reads a record, returning (nil, nil) when it does not exist.
func loadRecord(path string) (*kbfile.Document, error) {
	doc, err := kbfile.ReadDocument(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return doc, err
}

func sourceNote(src TimingSource) string {
	name := strings.ReplaceAll(strings.TrimPrefix(src.Source, "group_"), "_", " ")
	return "From group declaration - all " + name + " instructions"
}

// ApplyTiming writes layer2_datasheet.timing into pasm2_<mnemonic>.yaml
// for every mnemonic in timings. The layer2_datasheet block is created
// when absent. Records that already carry timing are left unchanged, and
// every other key in a record is kept as it was.
func ApplyTiming(dir string, timings map[string]TimingSource, snap kbfile.Snapshotter, w io.Writer) (ApplySummary, error) {
	lg := kblog.WithComponent("layers")

	mnemonics := make([]string, 0, len(timings))
	for m := range timings {
		mnemonics = append(mnemonics, m)
	}
	sort.Strings(mnemonics)

	var s ApplySummary
	for _, m := range mnemonics {
		src := timings[m]
		path := recordPath(dir, m)

		doc, err := loadRecord(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", m, err)
			s.Failed++
			continue
		}
		if doc == nil {
			lg.Debug().Str("mnemonic", m).Msg("no record file")
			s.NotFound++
			continue
		}

		root := doc.Root()
		if l2 := kbfile.MappingValue(root, types.LayerDatasheet); l2 != nil && kbfile.MappingValue(l2, "timing") != nil {
			s.Present++
			continue
		}

		l2 := kbfile.MappingValue(root, types.LayerDatasheet)
		if l2 == nil || kbfile.IsEmpty(l2) {
			l2 = kbfile.EnsureMapping(root, types.LayerDatasheet)
			kbfile.SetString(l2, "extraction_date", now().Format(time.RFC3339))
			kbfile.SetString(l2, "source", datasheetSource)
		}

		timing := ParseTiming(src.Raw)
		if src.FromGroup() {
			timing.SourceNote = sourceNote(src)
		}
		node, err := kbfile.NodeOf(timing)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", m, err)
			s.Failed++
			continue
		}
		kbfile.SetMappingValue(l2, "timing", node)

		if err := writeDocument(path, doc, snap, "layers timing"); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", m, err)
			s.Failed++
			continue
		}
		fmt.Fprintf(w, "updated %s (%s)\n", m, src.Raw)
		s.Updated++
	}

	fmt.Fprintf(w, "timing: %d updated, %d already present, %d without file, %d failed\n",
		s.Updated, s.Present, s.NotFound, s.Failed)
	return s, nil
}

func writeDocument(path string, doc *kbfile.Document, snap kbfile.Snapshotter, reason string) error {
	data, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	info, err := os.Stat(path)
	perm := os.FileMode(0o644)
	if err == nil {
		perm = info.Mode().Perm()
	}
	return kbfile.WriteFile(path, data, perm, snap, reason)
}
