// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedupe collapses instruction records whose file names differ
// only by an 8-character hash suffix into one record per mnemonic.
package dedupe

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
)

const (
	recordPrefix = "pasm2_"
	hashLen      = 8
)

// BaseName strips the pasm2_ prefix and a trailing 8-character segment
// from a record file stem. "pasm2_add_1a2b3c4d" becomes "add".
func BaseName(stem string) string {
	name := strings.TrimPrefix(stem, recordPrefix)
	i := strings.LastIndex(name, "_")
	if i >= 0 && len(name)-i-1 == hashLen {
		return name[:i]
	}
	return name
}

// TargetName is the hash-free file name for a base name.
func TargetName(base string) string {
	if strings.HasPrefix(base, "_") {
		return "pasm2" + base + ".yaml"
	}
	return recordPrefix + base + ".yaml"
}

// Group is one base name and the record files that map to it, in sorted order.
type Group struct {
	Base  string
	Files []string
}

// Report summarises FindDuplicates.
type Report struct {
	// Duplicates holds the groups with more than one file, sorted by base.
	Duplicates []Group

	// Extra is the number of files beyond the first in each duplicate group.
	Extra int

	Unique int
	Total  int
}

// groups maps each base name in dir to its files.
func groups(dir string) (map[string][]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, recordPrefix+"*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	sort.Strings(matches)

	out := map[string][]string{}
	for _, m := range matches {
		stem := strings.TrimSuffix(filepath.Base(m), ".yaml")
		base := BaseName(stem)
		out[base] = append(out[base], m)
	}
	return out, nil
}

func sortedBases(g map[string][]string) []string {
	bases := make([]string, 0, len(g))
	for b := range g {
		bases = append(bases, b)
	}
	sort.Strings(bases)
	return bases
}

// FindDuplicates reports base names shared by more than one record file.
func FindDuplicates(dir string) (Report, error) {
	g, err := groups(dir)
	if err != nil {
		return Report{}, err
	}

	var r Report
	for _, base := range sortedBases(g) {
		files := g[base]
		r.Total += len(files)
		if len(files) > 1 {
			r.Duplicates = append(r.Duplicates, Group{Base: base, Files: files})
			r.Extra += len(files) - 1
		}
	}
	r.Unique = len(g)
	return r, nil
}

// MergeSummary counts the outcome of MergeAndRename.
type MergeSummary struct {
	Processed int
	Merged    int
	Renamed   int
	Failed    int
	Final     int
}

// HasFailures reports whether any group could not be merged or renamed.
func (s MergeSummary) HasFailures() bool {
	return s.Failed > 0
}

// MergeAndRename gives every base name in dir exactly one hash-free file.
// A group of several files keeps the largest one's contents under the
// target name and removes the rest. A lone file is renamed to the target.
// Every overwritten or removed file is passed to snap first.
func MergeAndRename(dir string, snap kbfile.Snapshotter, w io.Writer) (MergeSummary, error) {
	lg := kblog.WithComponent("dedupe")

	g, err := groups(dir)
	if err != nil {
		return MergeSummary{}, err
	}

	var s MergeSummary
	for _, base := range sortedBases(g) {
		files := g[base]
		target := filepath.Join(dir, TargetName(base))
		s.Processed++

		if len(files) > 1 {
			fmt.Fprintf(w, "merging %d files for %s -> %s\n", len(files), base, filepath.Base(target))
			if err := merge(files, target, snap); err != nil {
				fmt.Fprintf(w, "failed  %s: %v\n", base, err)
				lg.Error().Err(err).Str("base", base).Msg("merge failed")
				s.Failed++
				continue
			}
			s.Merged++
			continue
		}

		if files[0] == target {
			continue
		}
		if err := kbfile.Rename(files[0], target, snap, "dedupe rename"); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", base, err)
			s.Failed++
			continue
		}
		s.Renamed++
	}

	final, err := filepath.Glob(filepath.Join(dir, "pasm2*.yaml"))
	if err != nil {
		return s, fmt.Errorf("counting records: %w", err)
	}
	s.Final = len(final)

	fmt.Fprintf(w, "processed %d, merged %d, renamed %d, failed %d, final count %d\n",
		s.Processed, s.Merged, s.Renamed, s.Failed, s.Final)
	return s, nil
}

// merge writes the largest file's contents to target and removes every
// other member. Ties go to the first file in sorted order.
func merge(files []string, target string, snap kbfile.Snapshotter) error {
	largest := ""
	var largestSize int64 = -1
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return err
		}
		if info.Size() > largestSize {
			largest, largestSize = f, info.Size()
		}
	}

	if largest != target {
		data, err := os.ReadFile(largest)
		if err != nil {
			return err
		}
		if err := kbfile.WriteFile(target, data, 0o644, snap, "dedupe merge"); err != nil {
			return err
		}
	}

	for _, f := range files {
		if f == target {
			continue
		}
		if err := kbfile.Remove(f, snap, "dedupe merge"); err != nil {
			return err
		}
	}
	return nil
}
