// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package instructions

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pdiddy/p2kb/internal/kbfile"
)

// RemovalScript is written next to the records when invalid files exist.
const RemovalScript = "remove_invalid_files.sh"

// listLimit caps how many names each report section prints.
const listLimit = 20

var (
	excludedFragments = []string{"IF_", "_RET_", "MODCZ", "MODC", "MODZ"}
	excludedWords     = map[string]bool{"C": true, "NC": true, "Z": true, "NZ": true, "CLR": true, "EMPTY": true, "SET": true, "INST": true}

	conditionalFragments = []string{"if_", "c_", "nc_", "z_", "nz_", "_ret_"}
	conditionalWords     = map[string]bool{"e": true, "ne": true, "gt": true, "ge": true, "lt": true, "le": true}
	pseudoWords          = map[string]bool{"c": true, "nc": true, "z": true, "nz": true, "clr": true, "empty": true, "inst": true, "set": true, "ret_": true}
)

// CrossCheck compares record file names with the spreadsheet's mnemonics.
type CrossCheck struct {
	// Real holds the lowercase mnemonics found in the spreadsheet.
	Real []string

	// Files holds the names taken from pasm2_<name>.yaml stems.
	Files []string

	Conditionals []string
	Pseudo       []string
	Unknown      []string

	// Missing holds spreadsheet mnemonics with no record file.
	Missing []string
}

// Invalid returns every file name that should not exist, sorted.
func (c CrossCheck) Invalid() []string {
	set := map[string]bool{}
	for _, group := range [][]string{c.Conditionals, c.Pseudo, c.Unknown} {
		for _, n := range group {
			set[n] = true
		}
	}
	return sortedKeys(set)
}

// HasFailures reports whether any file is invalid or missing.
func (c CrossCheck) HasFailures() bool {
	return len(c.Invalid()) > 0 || len(c.Missing) > 0
}

// realMnemonic returns the lowercase first word of syntax, or "" when it
// is a condition prefix, flag modifier, or pseudo-instruction.
func realMnemonic(syntax string) string {
	fields := strings.Fields(syntax)
	if len(fields) == 0 {
		return ""
	}
	m := strings.ToUpper(fields[0])
	for _, frag := range excludedFragments {
		if strings.Contains(m, frag) {
			return ""
		}
	}
	if excludedWords[m] {
		return ""
	}
	return strings.ToLower(m)
}

func classify(name string) string {
	for _, frag := range conditionalFragments {
		if strings.Contains(name, frag) {
			return "conditional"
		}
	}
	switch {
	case pseudoWords[name]:
		return "pseudo"
	case conditionalWords[name]:
		return "conditional"
	}
	return "unknown"
}

// ValidateAgainstCSV checks the record files in dir against the
// spreadsheet at csvPath. When any file should not exist, a removal
// script is written to dir.
func ValidateAgainstCSV(csvPath, dir string, w io.Writer) (CrossCheck, error) {
	rows, err := readRows(csvPath)
	if err != nil {
		return CrossCheck{}, err
	}

	inCSV := map[string]bool{}
	for _, r := range rows {
		if m := realMnemonic(r.Get(colSyntax)); m != "" {
			inCSV[m] = true
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "pasm2_*.yaml"))
	if err != nil {
		return CrossCheck{}, fmt.Errorf("listing records: %w", err)
	}
	files := map[string]bool{}
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), ".yaml")
		files[strings.TrimPrefix(name, "pasm2_")] = true
	}

	check := CrossCheck{Real: sortedKeys(inCSV), Files: sortedKeys(files)}
	for _, name := range check.Files {
		if inCSV[name] {
			continue
		}
		switch classify(name) {
		case "conditional":
			check.Conditionals = append(check.Conditionals, name)
		case "pseudo":
			check.Pseudo = append(check.Pseudo, name)
		default:
			check.Unknown = append(check.Unknown, name)
		}
	}
	for _, name := range check.Real {
		if !files[name] {
			check.Missing = append(check.Missing, name)
		}
	}

	fmt.Fprintf(w, "%d real instructions in spreadsheet, %d record files\n", len(check.Real), len(check.Files))
	printSection(w, "conditionals", check.Conditionals, func(n string) string { return "pasm2_" + n + ".yaml" })
	printSection(w, "pseudo-instructions", check.Pseudo, func(n string) string { return "pasm2_" + n + ".yaml" })
	printSection(w, "unknown", check.Unknown, func(n string) string { return "pasm2_" + n + ".yaml" })
	printSection(w, "missing", check.Missing, strings.ToUpper)

	invalid := check.Invalid()
	if len(invalid) > 0 {
		script := removalScript(invalid, len(check.Real))
		path := filepath.Join(dir, RemovalScript)
		if err := kbfile.WriteFile(path, []byte(script), 0o755, nil, ""); err != nil {
			return check, fmt.Errorf("writing removal script: %w", err)
		}
		fmt.Fprintf(w, "wrote %s (%d files)\n", path, len(invalid))
	}
	return check, nil
}

func printSection(w io.Writer, title string, names []string, format func(string) string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", title, len(names))
	for i, n := range names {
		if i == listLimit {
			fmt.Fprintf(w, "  ... and %d more\n", len(names)-listLimit)
			break
		}
		fmt.Fprintf(w, "  %s\n", format(n))
	}
}

func removalScript(invalid []string, remaining int) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "# Remove %d files that don't match spreadsheet instructions\n\n", len(invalid))
	fmt.Fprintf(&b, "echo 'Removing %d invalid files...'\n\n", len(invalid))
	for _, n := range invalid {
		fmt.Fprintf(&b, "rm -f pasm2_%s.yaml\n", n)
	}
	fmt.Fprintf(&b, "\necho 'Removed %d files'\n", len(invalid))
	fmt.Fprintf(&b, "echo 'Remaining valid instruction files: %d'\n", remaining)
	return b.String()
}
