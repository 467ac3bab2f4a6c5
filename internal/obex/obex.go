// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package obex maintains OBEX object records: author clean-up, author
// statistics, and object ID integrity.
package obex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/p2kb/internal/kbfile"
	"github.com/pdiddy/p2kb/pkg/types"
)

// templateFile is the record template kept alongside the objects.
const templateFile = "_template.yaml"

// now is replaceable for tests.
var now = time.Now

// record is one parsed object file.
type record struct {
	Path string
	Doc  *kbfile.Document
	Obj  types.ObexObject
}

// Stem is the file name without .yaml.
func (r record) Stem() string {
	return strings.TrimSuffix(filepath.Base(r.Path), ".yaml")
}

// objectFiles lists the object records in dir, sorted by name.
func objectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".yaml" || name == templateFile {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

func readRecord(path string) (record, error) {
	doc, err := kbfile.ReadDocument(path)
	if err != nil {
		return record{}, err
	}
	r := record{Path: path, Doc: doc}
	if err := doc.Decode(&r.Obj); err != nil {
		return record{}, fmt.Errorf("decoding object: %w", err)
	}
	return r, nil
}

func (r record) write(snap kbfile.Snapshotter, reason string) error {
	data, err := r.Doc.Bytes()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", r.Path, err)
	}
	perm := os.FileMode(0o644)
	if info, err := os.Stat(r.Path); err == nil {
		perm = info.Mode().Perm()
	}
	return kbfile.WriteFile(r.Path, data, perm, snap, reason)
}
