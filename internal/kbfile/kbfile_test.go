// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kbfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

// recordingSnapshotter keeps every snapshot in memory.
type recordingSnapshotter struct {
	paths   []string
	data    [][]byte
	reasons []string
}

func (r *recordingSnapshotter) Snapshot(path string, data []byte, reason string) error {
	r.paths = append(r.paths, path)
	r.data = append(r.data, append([]byte(nil), data...))
	r.reasons = append(r.reasons, reason)
	return nil
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "pasm2_add.yaml")
	snap := &recordingSnapshotter{}

	require.NoError(t, WriteFile(path, []byte("a: 1\n"), 0o644, snap, "first"))
	assert.Empty(t, snap.paths, "new file needs no snapshot")

	require.NoError(t, WriteFile(path, []byte("a: 2\n"), 0o644, snap, "second"))
	require.Len(t, snap.paths, 1)
	assert.Equal(t, path, snap.paths[0])
	assert.Equal(t, "a: 1\n", string(snap.data[0]))
	assert.Equal(t, "second", snap.reasons[0])

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: 2\n", string(got))
}

func TestWriteFileKeepsExistingMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	require.NoError(t, WriteFile(path, []byte("a: 2\n"), 0o644, nil, "edit"))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestRemoveAndRename(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(a, []byte("x: 1\n"), 0o644))
	snap := &recordingSnapshotter{}

	require.NoError(t, Rename(a, b, snap, "rename"))
	assert.NoFileExists(t, a)
	assert.FileExists(t, b)
	assert.Equal(t, []string{a}, snap.paths)

	require.NoError(t, Remove(b, snap, "remove"))
	assert.NoFileExists(t, b)
	assert.Equal(t, []string{a, b}, snap.paths)
}

func TestDocumentEditsPreserveOrder(t *testing.T) {
	src := []byte(`metadata:
  id: pasm2_add
layer1_csv:
  mnemonic: ADD
# hand-written note
custom_field: keep me
`)
	doc, err := ParseDocument(src)
	require.NoError(t, err)

	assert.Equal(t, "ADD", doc.String("layer1_csv", "mnemonic"))
	assert.Equal(t, "", doc.String("layer2_datasheet", "timing"))

	l2 := EnsureMapping(doc.Root(), "layer2_datasheet")
	SetString(l2, "source", "P2 Datasheet v35")

	out, err := doc.Bytes()
	require.NoError(t, err)

	var keys yaml.Node
	require.NoError(t, yaml.Unmarshal(out, &keys))
	top := keys.Content[0]
	var names []string
	for i := 0; i < len(top.Content); i += 2 {
		names = append(names, top.Content[i].Value)
	}
	assert.Equal(t, []string{"metadata", "layer1_csv", "custom_field", "layer2_datasheet"}, names)
	assert.Contains(t, string(out), "# hand-written note")
}

func TestParseDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "empty", src: ""},
		{name: "null", src: "~\n"},
		{name: "sequence", src: "- a\n- b\n"},
		{name: "invalid", src: "a: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestIsEmpty(t *testing.T) {
	doc, err := ParseDocument([]byte("a: ~\nb: ''\nc: {}\nd: []\ne: value\nf:\n  g: 1\n"))
	require.NoError(t, err)

	for key, want := range map[string]bool{"a": true, "b": true, "c": true, "d": true, "e": false, "f": false, "missing": true} {
		assert.Equal(t, want, IsEmpty(doc.Lookup(key)), key)
	}
}

func TestPlain(t *testing.T) {
	var doc any
	require.NoError(t, yaml.Unmarshal([]byte("timing:\n  8: 2\n  16: 4\nforms:\n  - {true: x}\nname: ADD\n"), &doc))

	got := Plain(doc)
	assert.Equal(t, map[string]any{
		"timing": map[string]any{"8": 2, "16": 4},
		"forms":  []any{map[string]any{"true": "x"}},
		"name":   "ADD",
	}, got)

	_, err := json.Marshal(got)
	assert.NoError(t, err)
}
