// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	kblog "github.com/pdiddy/p2kb/internal/log"
)

// DefaultDebounce is how long Watch waits after the last change before
// re-indexing.
const DefaultDebounce = 500 * time.Millisecond

// Watch runs Ingest once, then again whenever YAML files under the root
// change, until ctx is cancelled. Bursts of events within debounce are
// coalesced into one run.
func (s *Store) Watch(ctx context.Context, w io.Writer, debounce time.Duration) error {
	lg := kblog.WithComponent("knowledge")
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := s.addWatches(watcher, s.root); err != nil {
		return err
	}
	if _, err := s.Ingest(ctx, w); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if event.Has(fsnotify.Create) {
				if err := s.addWatches(watcher, event.Name); err != nil {
					lg.Debug().Err(err).Str("path", event.Name).Msg("not watching new path")
				}
			}
			if !s.relevant(event) {
				continue
			}
			timer.Reset(debounce)
		case <-timer.C:
			lg.Info().Msg("change detected, re-indexing")
			if _, err := s.Ingest(ctx, w); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				lg.Warn().Err(err).Msg("re-index failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			lg.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}

// relevant reports whether event concerns a YAML file outside the index.
func (s *Store) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if filepath.Ext(event.Name) != ".yaml" {
		return false
	}
	abs, _ := filepath.Abs(event.Name)
	indexAbs, _ := filepath.Abs(s.indexDir)
	return !strings.HasPrefix(abs, indexAbs+string(filepath.Separator))
}

// addWatches watches dir and every directory below it, skipping the index
// and hidden directories. Paths that are not directories are ignored.
func (s *Store) addWatches(watcher *fsnotify.Watcher, dir string) error {
	indexAbs, _ := filepath.Abs(s.indexDir)
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if abs, _ := filepath.Abs(path); abs == indexAbs {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch directory %s: %w", path, err)
		}
		return nil
	})
}
