// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backup keeps pre-write snapshots of knowledge-base files in a
// bbolt database and restores them on request. Snapshot keys sort by path
// and then by time, so a cursor seek lists one file's history in order.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
)

const (
	bucketSnapshots = "snapshots" // key: path \x00 nanos -> Snapshot JSON
	bucketRollbacks = "rollbacks" // key: sequence -> RollbackRecord JSON
)

// SafetyReason tags the snapshot taken of a file's current contents just
// before a rollback overwrites it. Safety snapshots are never chosen as
// rollback targets.
const SafetyReason = "rollback-safety"

// ErrNotFound is returned when no snapshot or restore point matches.
var ErrNotFound = errors.New("backup not found")

// Snapshot is one stored copy of a file.
type Snapshot struct {
	Path    string      `json:"path"`
	TakenAt time.Time   `json:"taken_at"`
	Reason  string      `json:"reason"`
	Size    int         `json:"size"`
	Mode    fs.FileMode `json:"mode,omitempty"`
	Data    []byte      `json:"data,omitempty"`
}

// RollbackRecord is one entry of the rollback log.
type RollbackRecord struct {
	Time       time.Time `json:"time" yaml:"time"`
	Path       string    `json:"path" yaml:"path"`
	SnapshotAt time.Time `json:"snapshot_at" yaml:"snapshot_at"`
	Reason     string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Store is a bbolt-backed snapshot store. It implements kbfile.Snapshotter.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ kbfile.Snapshotter = (*Store)(nil)

// Open opens or creates the snapshot database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening backup database: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketSnapshots, bucketRollbacks} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func snapshotKey(path string, t time.Time) []byte {
	return []byte(fmt.Sprintf("%s\x00%020d", path, t.UnixNano()))
}

// Snapshot stores data as the contents of path at the current time, with
// the permissions path has on disk when it exists.
func (s *Store) Snapshot(path string, data []byte, reason string) error {
	path = normalize(path)
	snap := Snapshot{
		Path:    path,
		TakenAt: s.now().UTC(),
		Reason:  reason,
		Size:    len(data),
		Data:    data,
	}
	if fi, err := os.Stat(path); err == nil {
		snap.Mode = fi.Mode().Perm()
	}
	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		key := snapshotKey(path, snap.TakenAt)
		// Two writes of one file inside the same nanosecond keep both copies.
		for b.Get(key) != nil {
			snap.TakenAt = snap.TakenAt.Add(time.Nanosecond)
			key = snapshotKey(path, snap.TakenAt)
		}
		if value, err = json.Marshal(snap); err != nil {
			return err
		}
		return b.Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("storing snapshot of %s: %w", path, err)
	}

	l := kblog.WithComponent("backup")
	l.Debug().Str("path", path).Str("reason", reason).Int("bytes", len(data)).Msg("snapshot stored")
	return nil
}

// List returns the snapshots of path, newest first, without their data.
// An empty path lists every snapshot.
func (s *Store) List(path string) ([]Snapshot, error) {
	return s.list(path, false)
}

func (s *Store) list(path string, withData bool) ([]Snapshot, error) {
	var prefix []byte
	if path != "" {
		prefix = []byte(normalize(path) + "\x00")
	}

	var out []Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketSnapshots)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var snap Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("decoding snapshot %q: %w", k, err)
			}
			if !withData {
				snap.Data = nil
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out, nil
}

// Rollback restores path from its newest snapshot taken at or before at.
// A zero at selects the newest snapshot. The file's current contents are
// kept as a safety snapshot first, and the rollback is logged.
func (s *Store) Rollback(path string, at time.Time, reason string) (RollbackRecord, error) {
	path = normalize(path)
	snaps, err := s.list(path, true)
	if err != nil {
		return RollbackRecord{}, err
	}

	var target *Snapshot
	for i := range snaps {
		if snaps[i].Reason == SafetyReason {
			continue
		}
		if at.IsZero() || !snaps[i].TakenAt.After(at) {
			target = &snaps[i]
			break
		}
	}
	if target == nil {
		return RollbackRecord{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	mode := target.Mode
	if mode == 0 {
		mode = 0o644
	}
	if err := kbfile.WriteFile(path, target.Data, mode, safetySnapshotter{s}, SafetyReason); err != nil {
		return RollbackRecord{}, err
	}
	if err := os.Chmod(path, mode); err != nil {
		return RollbackRecord{}, fmt.Errorf("restoring mode of %s: %w", path, err)
	}

	rec := RollbackRecord{
		Time:       s.now().UTC(),
		Path:       path,
		SnapshotAt: target.TakenAt,
		Reason:     reason,
	}
	if err := s.appendLog(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// safetySnapshotter stores the pre-rollback copy under SafetyReason no
// matter what reason the writer passes.
type safetySnapshotter struct{ s *Store }

func (f safetySnapshotter) Snapshot(path string, data []byte, _ string) error {
	return f.s.Snapshot(path, data, SafetyReason)
}

// RollbackResult lists the outcome of a multi-file rollback.
type RollbackResult struct {
	RolledBack []string
	Failed     []string
}

// RollbackSince restores every file under dir changed after since to the
// newest snapshot taken at or before since. An empty dir covers every path.
// Files first snapshotted after since have no earlier state and are
// reported as failed.
func (s *Store) RollbackSince(dir string, since time.Time, reason string) (RollbackResult, error) {
	all, err := s.list("", false)
	if err != nil {
		return RollbackResult{}, err
	}

	prefix := ""
	if dir != "" {
		prefix = normalize(dir) + string(filepath.Separator)
	}

	changed := map[string]bool{}
	for _, snap := range all {
		if !strings.HasPrefix(snap.Path, prefix) {
			continue
		}
		if snap.Reason != SafetyReason && snap.TakenAt.After(since) {
			changed[snap.Path] = true
		}
	}
	paths := make([]string, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var res RollbackResult
	for _, p := range paths {
		if _, err := s.Rollback(p, since, reason); err != nil {
			res.Failed = append(res.Failed, p)
			continue
		}
		res.RolledBack = append(res.RolledBack, p)
	}
	return res, nil
}

// PruneResult counts the outcome of Prune.
type PruneResult struct {
	Deleted    int
	Kept       int
	BytesFreed int64
}

// Prune deletes snapshots taken before cutoff.
func (s *Store) Prune(cutoff time.Time) (PruneResult, error) {
	var res PruneResult
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			var snap Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("decoding snapshot %q: %w", k, err)
			}
			if snap.TakenAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
				res.BytesFreed += int64(snap.Size)
				return nil
			}
			res.Kept++
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		res.Deleted = len(stale)
		return nil
	})
	return res, err
}

func (s *Store) appendLog(rec RollbackRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketRollbacks))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put([]byte(fmt.Sprintf("%020d", seq)), value)
	})
}

// Log returns the rollback history, oldest first.
func (s *Store) Log() ([]RollbackRecord, error) {
	var out []RollbackRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRollbacks)).ForEach(func(k, v []byte) error {
			var rec RollbackRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding rollback %q: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}
