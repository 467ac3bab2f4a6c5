// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/p2kb/internal/kbfile"
)

// steppingClock returns t0, t0+1s, t0+2s, ... on successive calls.
func steppingClock(t0 time.Time) func() time.Time {
	next := t0
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "tracking", "backups.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.now = steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return s, dir
}

func TestSnapshotAndList(t *testing.T) {
	s, dir := openTestStore(t)
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")

	require.NoError(t, s.Snapshot(a, []byte("v1"), "first"))
	require.NoError(t, s.Snapshot(b, []byte("other"), "first"))
	require.NoError(t, s.Snapshot(a, []byte("v2"), "second"))

	snaps, err := s.List(a)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "second", snaps[0].Reason)
	assert.Equal(t, "first", snaps[1].Reason)
	assert.Nil(t, snaps[0].Data)
	assert.Equal(t, 2, snaps[0].Size)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestWriteFileSnapshotsThroughStore(t *testing.T) {
	s, dir := openTestStore(t)
	path := filepath.Join(dir, "pasm2_add.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	require.NoError(t, kbfile.WriteFile(path, []byte("new\n"), 0o644, s, "layers timing"))

	snaps, err := s.List(path)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "layers timing", snaps[0].Reason)
}

func TestRollback(t *testing.T) {
	s, dir := openTestStore(t)
	path := filepath.Join(dir, "pasm2_mov.yaml")

	require.NoError(t, s.Snapshot(path, []byte("v1"), "edit")) // 00:00:00
	require.NoError(t, s.Snapshot(path, []byte("v2"), "edit")) // 00:00:01
	require.NoError(t, os.WriteFile(path, []byte("v3"), 0o644))

	t.Run("latest", func(t *testing.T) {
		rec, err := s.Rollback(path, time.Time{}, "undo")
		require.NoError(t, err)
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
		assert.Equal(t, "undo", rec.Reason)
	})

	t.Run("at time", func(t *testing.T) {
		at := time.Date(2026, 1, 1, 0, 0, 0, 500, time.UTC)
		_, err := s.Rollback(path, at, "undo further")
		require.NoError(t, err)
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "v1", string(got))
	})

	t.Run("safety snapshots are kept but never restored", func(t *testing.T) {
		snaps, err := s.List(path)
		require.NoError(t, err)
		var safety int
		for _, snap := range snaps {
			if snap.Reason == SafetyReason {
				safety++
			}
		}
		assert.Equal(t, 2, safety)
	})

	t.Run("log", func(t *testing.T) {
		log, err := s.Log()
		require.NoError(t, err)
		require.Len(t, log, 2)
		assert.Equal(t, "undo", log[0].Reason)
		assert.Equal(t, "undo further", log[1].Reason)
	})

	t.Run("unknown path", func(t *testing.T) {
		_, err := s.Rollback(filepath.Join(dir, "missing.yaml"), time.Time{}, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRollbackRestoresMode(t *testing.T) {
	s, dir := openTestStore(t)
	path := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	require.NoError(t, kbfile.WriteFile(path, []byte("v2"), 0o644, s, "edit"))
	snaps, err := s.List(path)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, os.FileMode(0o600), snaps[0].Mode)

	require.NoError(t, os.Chmod(path, 0o644))
	_, err = s.Rollback(path, time.Time{}, "undo")
	require.NoError(t, err)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestRollbackSince(t *testing.T) {
	s, dir := openTestStore(t)
	kb := filepath.Join(dir, "kb")
	a := filepath.Join(kb, "a.yaml")
	b := filepath.Join(kb, "b.yaml")
	outside := filepath.Join(dir, "elsewhere.yaml")

	require.NoError(t, s.Snapshot(a, []byte("a0"), "seed"))       // 00:00:00
	since := time.Date(2026, 1, 1, 0, 0, 0, 500, time.UTC)        // between
	require.NoError(t, s.Snapshot(a, []byte("a1"), "edit"))       // 00:00:01
	require.NoError(t, s.Snapshot(b, []byte("b1"), "edit"))       // 00:00:02
	require.NoError(t, s.Snapshot(outside, []byte("x1"), "edit")) // 00:00:03
	require.NoError(t, os.WriteFile(a, []byte("a2"), 0o644))

	res, err := s.RollbackSince(kb, since, "bad run")
	require.NoError(t, err)
	assert.Equal(t, []string{a}, res.RolledBack)
	assert.Equal(t, []string{b}, res.Failed)

	got, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "a0", string(got))
}

func TestPrune(t *testing.T) {
	s, dir := openTestStore(t)
	path := filepath.Join(dir, "x.yaml")
	require.NoError(t, s.Snapshot(path, []byte("1234"), "old"))  // 00:00:00
	require.NoError(t, s.Snapshot(path, []byte("12345"), "new")) // 00:00:01

	res, err := s.Prune(time.Date(2026, 1, 1, 0, 0, 0, 500, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, PruneResult{Deleted: 1, Kept: 1, BytesFreed: 4}, res)

	snaps, err := s.List(path)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "new", snaps[0].Reason)
}
