// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package images

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pdiddy/p2kb/internal/kbfile"
)

// Default figure prefixes for catalog renumbering.
const (
	DefaultOldPrefix = "P2-"
	DefaultNewPrefix = "P2DS-"
)

// RenumberCatalog rewrites figure numbers from oldPrefix to newPrefix,
// including the document prefix line. Numbers are kept as they are.
func RenumberCatalog(content, oldPrefix, newPrefix string) string {
	num := regexp.MustCompile(regexp.QuoteMeta(oldPrefix) + `(\d+)`)
	out := num.ReplaceAllString(content, newPrefix+"${1}")
	return strings.ReplaceAll(out,
		"**Document Prefix**: "+strings.TrimRight(oldPrefix, "-"),
		"**Document Prefix**: "+strings.TrimRight(newPrefix, "-"))
}

// RenumberCatalogFile applies RenumberCatalog to a file in place. It
// reports whether the file changed.
func RenumberCatalogFile(path, oldPrefix, newPrefix string, snap kbfile.Snapshotter) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading catalog: %w", err)
	}
	out := RenumberCatalog(string(data), oldPrefix, newPrefix)
	if out == string(data) {
		return false, nil
	}
	if err := kbfile.WriteFile(path, []byte(out), 0o644, snap, "renumber-catalog"); err != nil {
		return false, fmt.Errorf("writing catalog: %w", err)
	}
	return true, nil
}
