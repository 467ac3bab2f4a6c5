// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest traces the manifest link graph of the knowledge base
// and regenerates directory manifests.
package manifest

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
)

// RootManifest is where link tracing starts.
const RootManifest = "root_manifest.yaml"

// LinkReport is the result of CheckLinks. Paths are slash-separated and
// relative to the knowledge-base root.
type LinkReport struct {
	All     []string
	Linked  []string
	Missing []string
	Orphans map[string][]string
}

// OrphanCount is the number of files no manifest reaches.
func (r LinkReport) OrphanCount() int {
	n := 0
	for _, files := range r.Orphans {
		n += len(files)
	}
	return n
}

// CheckLinks follows every .yaml reference reachable from the root
// manifest and reports files that are referenced but missing, and files
// that exist but are never reached.
func CheckLinks(root string) (LinkReport, error) {
	lg := kblog.WithComponent("manifest")

	all, err := yamlFiles(root)
	if err != nil {
		return LinkReport{}, err
	}

	linked := map[string]bool{RootManifest: true}
	queue := []string{RootManifest}
	var missing []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(current)))
		if err != nil {
			missing = append(missing, current)
			continue
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			lg.Warn().Err(err).Str("file", current).Msg("skipping unparsable manifest")
			continue
		}
		base := path.Dir(current)
		walkRefs(kbfile.Plain(doc), func(ref string) {
			rel := resolveRef(root, base, ref)
			if linked[rel] {
				return
			}
			linked[rel] = true
			queue = append(queue, rel)
		})
	}

	rep := LinkReport{All: all, Missing: missing, Orphans: map[string][]string{}}
	for rel := range linked {
		rep.Linked = append(rep.Linked, rel)
	}
	sort.Strings(rep.Linked)
	for _, rel := range all {
		if linked[rel] {
			continue
		}
		dir := path.Dir(rel)
		rep.Orphans[dir] = append(rep.Orphans[dir], path.Base(rel))
	}
	return rep, nil
}

// walkRefs calls fn for every string ending in .yaml, at any depth.
func walkRefs(v any, fn func(string)) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkRefs(t[k], fn)
		}
	case []any:
		for _, item := range t {
			walkRefs(item, fn)
		}
	case string:
		if strings.HasSuffix(t, ".yaml") {
			fn(t)
		}
	}
}

// resolveRef maps a reference to a root-relative path. A leading slash is
// root-relative; anything else is relative to the referencing file and
// kept literally when the target does not exist.
func resolveRef(root, base, ref string) string {
	if strings.HasPrefix(ref, "/") {
		return strings.TrimPrefix(ref, "/")
	}
	joined := path.Clean(path.Join(base, ref))
	if strings.HasPrefix(joined, "../") {
		return ref
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(joined))); err != nil {
		return ref
	}
	return joined
}

func yamlFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// manifestHints names the manifest that would link a directory's orphans.
var manifestHints = []struct {
	dirs []string
	hint string
}{
	{[]string{"language/pasm2"}, "Create language/pasm2/instruction_manifest.yaml"},
	{[]string{"language/pasm2/groups"}, "Create or link language/pasm2/groups manifests"},
	{[]string{"language/spin2", "language/spin2/methods"}, "Create language/spin2/method_manifest.yaml"},
	{[]string{"hardware"}, "Create hardware/board_manifest.yaml"},
	{[]string{"architecture/smart-pins"}, "Create architecture/smart-pins/smartpin_manifest.yaml"},
}

// crowdedOrphans is the orphan count above which a directory is flagged as
// needing its own manifest.
const crowdedOrphans = 10

// Recommendations lists the manifests that would link known orphan
// directories.
func (r LinkReport) Recommendations() []string {
	var out []string
	for _, h := range manifestHints {
		for _, d := range h.dirs {
			if len(r.Orphans[d]) > 0 {
				out = append(out, h.hint)
				break
			}
		}
	}
	return out
}

// CrowdedDirs lists directories with more than ten orphans, sorted.
func (r LinkReport) CrowdedDirs() []string {
	var out []string
	for d, files := range r.Orphans {
		if len(files) > crowdedOrphans {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// WriteText prints the report, listing at most ten orphans per directory.
func (r LinkReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Total YAML files found: %d\n", len(r.All))
	fmt.Fprintf(w, "Files linked from %s: %d\n", RootManifest, len(r.Linked))
	for _, m := range r.Missing {
		fmt.Fprintf(w, "missing %s\n", m)
	}
	fmt.Fprintf(w, "\nOrphaned files: %d\n", r.OrphanCount())

	dirs := make([]string, 0, len(r.Orphans))
	for d := range r.Orphans {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		files := r.Orphans[d]
		fmt.Fprintf(w, "\n%s/ (%d files)\n", d, len(files))
		for i, f := range files {
			if i == 10 {
				fmt.Fprintf(w, "  ... and %d more\n", len(files)-10)
				break
			}
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}

	if recs := r.Recommendations(); len(recs) > 0 {
		fmt.Fprintln(w, "\nMissing manifest files that need to be created:")
		for _, rec := range recs {
			fmt.Fprintf(w, "- %s\n", rec)
		}
	}
	for _, d := range r.CrowdedDirs() {
		fmt.Fprintf(w, "%s: %d orphaned files (NEEDS MANIFEST)\n", d, len(r.Orphans[d]))
	}
}
