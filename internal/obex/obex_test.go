// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package obex

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/p2kb/internal/kbfile"
	"github.com/pdiddy/p2kb/pkg/types"
)

func writeObject(t *testing.T, dir, stem, id, title, author, source string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("object_metadata:\n")
	b.WriteString("  object_id: \"" + id + "\"\n")
	b.WriteString("  title: \"" + title + "\"\n")
	b.WriteString("  author: \"" + author + "\"\n")
	b.WriteString("  urls:\n    obex_page: https://obex.parallax.com/obex/driver-" + id + "/\n")
	if source != "" {
		b.WriteString("  metadata:\n    import_source: " + source + "\n")
	}
	b.WriteString("extra_field: kept\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, stem+".yaml"), []byte(b.String()), 0o644))
}

func readBack(t *testing.T, path string) *kbfile.Document {
	t.Helper()
	doc, err := kbfile.ReadDocument(path)
	require.NoError(t, err)
	return doc
}

func TestConsolidateAuthors(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2025, 9, 1, 10, 20, 30, 456_000_000, time.Local) }
	defer func() { now = orig }()

	dir := t.TempDir()
	writeObject(t, dir, "4001", "4001", "Archived", "Eric R. Smith", "github_archiver")
	writeObject(t, dir, "4002", "4002", "Scraped", "Eric R. Smith", "")
	writeObject(t, dir, "4003", "4003", "Other", "someone", "github_archiver")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_template.yaml"), []byte("object_metadata: {}\n"), 0o644))

	var out bytes.Buffer
	sum, err := ConsolidateAuthors(dir, DefaultAuthorMap(), nil, &out)
	require.NoError(t, err)

	assert.Equal(t, []string{"4001"}, sum.Updated)
	assert.Equal(t, 1, sum.Skipped)
	assert.False(t, sum.HasFailures())
	assert.Contains(t, out.String(), "skipped 4002")

	doc := readBack(t, filepath.Join(dir, "4001.yaml"))
	assert.Equal(t, "ersmith", doc.String("object_metadata", "author"))
	assert.Equal(t, "Eric R. Smith", doc.String("object_metadata", "metadata", "original_archiver_name"))
	assert.Equal(t, "2025-09-01T10:20:30.456", doc.String("object_metadata", "metadata", "last_author_consolidation"))
	assert.Equal(t, "kept", doc.String("extra_field"))

	assert.Equal(t, "Eric R. Smith", readBack(t, filepath.Join(dir, "4002.yaml")).String("object_metadata", "author"))
}

func TestConsolidateAuthorsNormalizesUnicode(t *testing.T) {
	dir := t.TempDir()
	// "é" written as e + combining acute accent.
	writeObject(t, dir, "4100", "4100", "T", "Rene\u0301", "github_archiver")

	sum, err := ConsolidateAuthors(dir, map[string]string{"Ren\u00e9": "rene"}, nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"4100"}, sum.Updated)
}

func TestConsolidateAuthorsChained(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "4300", "4300", "T", "Zed Archive", "github_archiver")
	writeObject(t, dir, "4301", "4301", "U", "loop-a", "github_archiver")

	mapping := map[string]string{
		"Zed Archive": "Alpha",
		"Alpha":       "alpha",
		"loop-a":      "loop-b",
		"loop-b":      "loop-a",
	}
	var out bytes.Buffer
	sum, err := ConsolidateAuthors(dir, mapping, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"4300", "4301"}, sum.Updated)

	doc := readBack(t, filepath.Join(dir, "4300.yaml"))
	assert.Equal(t, "alpha", doc.String("object_metadata", "author"))
	assert.Equal(t, "Alpha", doc.String("object_metadata", "metadata", "original_archiver_name"))
	assert.Contains(t, out.String(), `updated 4300: "Zed Archive" -> "alpha"`)

	assert.Equal(t, "loop-a", readBack(t, filepath.Join(dir, "4301.yaml")).String("object_metadata", "author"))
}

func TestIsCorruptAuthor(t *testing.T) {
	tests := []struct {
		author string
		want   bool
	}{
		{"ersmith", false},
		{"Jon McPhalen", false},
		{"ArchiverContent: Code", true},
		{"some over the ws2812 chain", true},
		{"5", true},
		{"15", false},
		{"Tes.", true},
		{"Browser Extension", true},
		{strings.Repeat("a", 101), true},
		{strings.Repeat("a", 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.author, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCorruptAuthor(tt.author))
		})
	}
}

func TestFixCorruptedAuthors(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "4201", "4201", "Good", "ersmith", "")
	writeObject(t, dir, "4202", "4202", "Bad", "The Parent Application", "")

	fixed, err := FixCorruptedAuthors(dir, nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, fixed, 1)
	assert.Equal(t, CorruptAuthor{ObjectID: "4202", Title: "Bad", BadAuthor: "The Parent Application"}, fixed[0])

	assert.Equal(t, "", readBack(t, filepath.Join(dir, "4202.yaml")).String("object_metadata", "author"))
	assert.Equal(t, "ersmith", readBack(t, filepath.Join(dir, "4201.yaml")).String("object_metadata", "author"))
}

func TestAuthorStats(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "4301", "4301", "A", "zed", "")
	writeObject(t, dir, "4302", "4302", "B", "amy", "")
	writeObject(t, dir, "4303", "4303", "C", "amy", "")
	writeObject(t, dir, "4304", "4304", "D", "", "")
	writeObject(t, dir, "4305", "4305", "E", "bob", "")

	stats, err := AuthorStats(dir, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 4, stats.Known)
	assert.Equal(t, 3, stats.Unique)
	assert.Equal(t, []ObjectRef{{ObjectID: "4304", Title: "D"}}, stats.Unknown)
	assert.Equal(t, []AuthorCount{{"amy", 2}, {"zed", 1}}, stats.Top)
	assert.InDelta(t, 80.0, stats.Coverage(), 0.001)
}

func TestAuditObjectIDs(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "4401", "4401", "Ok", "a", "")
	writeObject(t, dir, "4402", "4999", "Wrong", "a", "")

	a, err := AuditObjectIDs(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Total)
	require.Len(t, a.Mismatches, 1)
	assert.Equal(t, IDMismatch{File: "4402.yaml", ObjectID: "4999", Title: "Wrong", Suggested: "4999"}, a.Mismatches[0])
	assert.InDelta(t, 50.0, a.Integrity(), 0.001)
	assert.True(t, a.HasFailures())
}

func TestSuggestedIDFallsBackToDownload(t *testing.T) {
	got := SuggestedID(typesURLs("https://example.com/x", "https://obex.parallax.com/wp-admin/admin-ajax.php?action=download&obuid=OB4567"))
	assert.Equal(t, "4567", got)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "4501", "4501", "Fine", "a", "")
	writeObject(t, dir, "4502", "OB45", "", "a", "")

	bad, total, err := Validate(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, bad, 1)
	assert.Equal(t, "4502.yaml", bad[0].File)
	assert.Contains(t, bad[0].Err.Error(), "object_id")
	assert.Contains(t, bad[0].Err.Error(), "title")
}

func typesURLs(page, download string) types.ObexURLs {
	return types.ObexURLs{ObexPage: page, DownloadDirect: download}
}
