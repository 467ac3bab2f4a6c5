// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package kbfile holds the read and write primitives shared by every
// knowledge-base job: atomic replacement, pre-write snapshots, and
// order-preserving edits of YAML documents.
package kbfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"go.yaml.in/yaml/v3"

	kblog "github.com/pdiddy/p2kb/internal/log"
)

// Snapshotter records the previous contents of a file before it is
// overwritten or removed. A nil Snapshotter disables snapshots.
type Snapshotter interface {
	Snapshot(path string, data []byte, reason string) error
}

// WriteFile atomically replaces path with data. When snap is non-nil and
// path already exists, its current bytes are snapshotted first; a failed
// snapshot aborts the write. An existing file keeps its permissions; perm
// applies to new files.
func WriteFile(path string, data []byte, perm os.FileMode, snap Snapshotter, reason string) error {
	if err := snapshotExisting(path, snap, reason); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(perm), renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("creating pending file for %s: %w", path, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			l := kblog.WithComponent("kbfile")
			l.Debug().Err(err).Str("path", path).Msg("cleanup pending file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// WriteYAML marshals v with two-space indentation and writes it with WriteFile.
func WriteYAML(path string, v any, snap Snapshotter, reason string) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	return WriteFile(path, data, 0o644, snap, reason)
}

// Remove deletes path after snapshotting it.
func Remove(path string, snap Snapshotter, reason string) error {
	if err := snapshotExisting(path, snap, reason); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// Rename moves from to to. An existing destination is snapshotted first.
func Rename(from, to string, snap Snapshotter, reason string) error {
	if err := snapshotExisting(to, snap, reason); err != nil {
		return err
	}
	if err := snapshotExisting(from, snap, reason); err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", from, to, err)
	}
	return nil
}

func snapshotExisting(path string, snap Snapshotter, reason string) error {
	if snap == nil {
		return nil
	}
	old, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s for snapshot: %w", path, err)
	}
	if err := snap.Snapshot(path, old, reason); err != nil {
		return fmt.Errorf("snapshotting %s: %w", path, err)
	}
	return nil
}

// Marshal encodes v as YAML with two-space indentation.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
