// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package obex

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/pkg/types"
)

// consolidationTimeFormat is a millisecond timestamp without zone.
const consolidationTimeFormat = "2006-01-02T15:04:05.000"

// maxAuthorLength is the longest author name accepted as genuine.
const maxAuthorLength = 100

// DefaultAuthorMap maps archiver-imported author names to the matching
// OBEX account names.
func DefaultAuthorMap() map[string]string {
	return map[string]string{
		"Eric R. Smith": "ersmith",
		"mike calyer (mcalyer, mike.calyer@yahoo.com)": "mike calyer",
		"Riley August (riley@robots-everywhere.com)":   "Riley August",
	}
}

// ConsolidateSummary counts the outcome of ConsolidateAuthors.
type ConsolidateSummary struct {
	Updated []string
	Skipped int
	Failed  int
}

// HasFailures reports whether any record could not be read or written.
func (s ConsolidateSummary) HasFailures() bool { return s.Failed > 0 }

// ConsolidateAuthors renames archiver-imported authors according to
// mapping. Only records whose import_source is the GitHub archiver change;
// each records the time and the name it replaced. Mappings chain: with
// A->B and B->C an author A ends up as C, and original_archiver_name holds
// the last name replaced (B).
func ConsolidateAuthors(dir string, mapping map[string]string, snap kbfile.Snapshotter, w io.Writer) (ConsolidateSummary, error) {
	lg := kblog.WithComponent("obex")
	paths, err := objectFiles(dir)
	if err != nil {
		return ConsolidateSummary{}, err
	}

	byName := make(map[string]string, len(mapping))
	for old, newName := range mapping {
		byName[norm.NFC.String(old)] = newName
	}

	var sum ConsolidateSummary
	for _, p := range paths {
		r, err := readRecord(p)
		if err != nil {
			sum.Failed++
			fmt.Fprintf(w, "failed  %s: %v\n", p, err)
			continue
		}
		meta := r.Obj.ObjectMetadata
		first, replaced, final, ok := resolveAuthor(byName, meta.Author)
		if !ok {
			continue
		}
		if meta.Metadata.ImportSource != types.ImportSourceArchiver {
			sum.Skipped++
			lg.Warn().Str("object", meta.ObjectID).Str("author", first).Msg("author matches but object is not an archiver import")
			fmt.Fprintf(w, "skipped %s: not an archiver import\n", meta.ObjectID)
			continue
		}

		om := r.Doc.Lookup("object_metadata")
		kbfile.SetString(om, "author", final)
		md := kbfile.EnsureMapping(om, "metadata")
		kbfile.SetString(md, "last_author_consolidation", now().Format(consolidationTimeFormat))
		kbfile.SetString(md, "original_archiver_name", replaced)
		if err := r.write(snap, "consolidate-authors"); err != nil {
			sum.Failed++
			fmt.Fprintf(w, "failed  %s: %v\n", meta.ObjectID, err)
			continue
		}
		sum.Updated = append(sum.Updated, meta.ObjectID)
		fmt.Fprintf(w, "updated %s: %q -> %q\n", meta.ObjectID, first, final)
	}
	return sum, nil
}

// resolveAuthor follows byName from author until no mapping applies or a
// name repeats. It returns the starting name, the last name replaced, and
// the final name; ok is false when author has no mapping.
func resolveAuthor(byName map[string]string, author string) (first, replaced, final string, ok bool) {
	current := author
	seen := map[string]bool{}
	for {
		key := norm.NFC.String(current)
		next, found := byName[key]
		if !found || seen[key] {
			break
		}
		seen[key] = true
		replaced, current, ok = current, next, true
	}
	return author, replaced, current, ok
}

// corruptionPatterns match text scraped from page bodies into the author
// field.
var corruptionPatterns = compilePatterns(
	`Archivercontent\s*:\s*Code`,
	`Each Smart Pin To Low-Pass`,
	`Some Over The Ws2812`,
	`Te Data \(Qr Has`,
	`Extension$`,
	`The Arduino Easy`,
	`Others -- Some Of Whom`,
	`The Spin Api Example`,
	`Hundreds Of Regression`,
	`Te Header \(\$Aaaa\)`,
	`Greg Lapolla Which Includes`,
	`Parallax\.Com Or By Mikroe`,
	`^5$`,
	`The Parent Application`,
	`^Applications\.$`,
	`Measuring-Floating-Pi`,
	`Bya Thomas \| Added`,
	`Skipping Spc700 Cycles`,
	`^Tes\.$`,
)

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// IsCorruptAuthor reports whether author looks like an extraction artifact.
func IsCorruptAuthor(author string) bool {
	author = strings.TrimSpace(author)
	if len([]rune(author)) > maxAuthorLength {
		return true
	}
	for _, re := range corruptionPatterns {
		if re.MatchString(author) {
			return true
		}
	}
	return false
}

// CorruptAuthor is an object whose author was cleared.
type CorruptAuthor struct {
	ObjectID  string
	Title     string
	BadAuthor string
}

// FixCorruptedAuthors clears corrupt author names and returns the affected
// objects so their authors can be extracted again.
func FixCorruptedAuthors(dir string, snap kbfile.Snapshotter, w io.Writer) ([]CorruptAuthor, error) {
	paths, err := objectFiles(dir)
	if err != nil {
		return nil, err
	}
	var fixed []CorruptAuthor
	for _, p := range paths {
		r, err := readRecord(p)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", p, err)
			continue
		}
		meta := r.Obj.ObjectMetadata
		if !IsCorruptAuthor(meta.Author) {
			continue
		}
		kbfile.SetString(r.Doc.Lookup("object_metadata"), "author", "")
		if err := r.write(snap, "fix-corrupted-authors"); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", meta.ObjectID, err)
			continue
		}
		fixed = append(fixed, CorruptAuthor{ObjectID: meta.ObjectID, Title: meta.Title, BadAuthor: strings.TrimSpace(meta.Author)})
		fmt.Fprintf(w, "cleared %s: %s\n", meta.ObjectID, truncate(strings.TrimSpace(meta.Author), maxAuthorLength))
	}
	return fixed, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// AuthorCount is one author and the number of objects they wrote.
type AuthorCount struct {
	Author string
	Count  int
}

// ObjectRef names an object.
type ObjectRef struct {
	ObjectID string
	Title    string
}

// AuthorStatistics summarises author attribution across all objects.
type AuthorStatistics struct {
	Total   int
	Known   int
	Unknown []ObjectRef
	Unique  int
	Top     []AuthorCount
}

// Coverage is the percentage of objects with a known author.
func (s AuthorStatistics) Coverage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Known) / float64(s.Total) * 100
}

// AuthorStats counts authors across dir and keeps the top entries. Ties
// keep the order in which authors first appear.
func AuthorStats(dir string, top int) (AuthorStatistics, error) {
	lg := kblog.WithComponent("obex")
	paths, err := objectFiles(dir)
	if err != nil {
		return AuthorStatistics{}, err
	}

	var (
		stats  AuthorStatistics
		counts = map[string]int{}
		order  []string
	)
	for _, p := range paths {
		r, err := readRecord(p)
		if err != nil {
			lg.Warn().Err(err).Str("path", p).Msg("skipping unreadable object")
			continue
		}
		stats.Total++
		meta := r.Obj.ObjectMetadata
		author := strings.TrimSpace(meta.Author)
		if author == "" {
			stats.Unknown = append(stats.Unknown, ObjectRef{ObjectID: meta.ObjectID, Title: meta.Title})
			continue
		}
		stats.Known++
		if counts[author] == 0 {
			order = append(order, author)
		}
		counts[author]++
	}

	stats.Unique = len(order)
	ranked := make([]AuthorCount, len(order))
	for i, a := range order {
		ranked[i] = AuthorCount{Author: a, Count: counts[a]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	stats.Top = ranked
	return stats, nil
}

// WriteText prints the statistics.
func (s AuthorStatistics) WriteText(w io.Writer) {
	for _, u := range s.Unknown {
		fmt.Fprintf(w, "unknown %s: %s\n", u.ObjectID, u.Title)
	}
	fmt.Fprintf(w, "\nTotal objects: %d\n", s.Total)
	fmt.Fprintf(w, "Objects with known authors: %d\n", s.Known)
	fmt.Fprintf(w, "Objects with unknown authors: %d\n", len(s.Unknown))
	fmt.Fprintf(w, "Author coverage: %.1f%%\n", s.Coverage())
	fmt.Fprintf(w, "Unique authors: %d\n", s.Unique)
	fmt.Fprintf(w, "\nTop authors by object count:\n")
	for _, a := range s.Top {
		fmt.Fprintf(w, "  %s: %d objects\n", a.Author, a.Count)
	}
}
