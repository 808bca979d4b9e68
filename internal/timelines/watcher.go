package timelines

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reconcileDelay debounces the sync pass that follows renames.
const reconcileDelay = 200 * time.Millisecond

// Watch re-renders claims files under the input root as they change until
// ctx is cancelled. Renames and removals drop the stale artifact; a short
// debounced Sync afterwards picks up the new name.
//
// Directories created at runtime are added to the watch list when the scan
// is recursive.
func (s *Service) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := s.input.Root()
	if err := s.addDirs(w, root); err != nil {
		return err
	}
	s.logger.Info("watcher: started", slog.String("root", root), slog.Bool("recursive", s.opts.Scan.Recursive))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if _, err := s.Sync(ctx); err != nil {
				s.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if !s.opts.Scan.Recursive {
						continue
					}
					if addErr := s.addDirs(w, ev.Name); addErr != nil {
						s.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					scheduleReconcile()
					continue
				}
			}
			s.handle(ctx, ev, scheduleReconcile)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (s *Service) handle(ctx context.Context, ev fsnotify.Event, scheduleReconcile func()) {
	rel, err := filepath.Rel(s.input.Root(), ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !s.tracked(rel) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		changed, err := s.RefreshFile(ctx, rel)
		if err != nil {
			s.logger.Warn("watcher: render failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		if changed {
			s.logger.Debug("watcher: rendered", slog.String("path", rel))
		}

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Rename fires on the old path only; the new name arrives as Create
		// when it stays inside a watched dir.
		if err := s.RemoveFile(ctx, rel); err != nil {
			s.logger.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", err.Error()))
		} else {
			s.logger.Debug("watcher: removed", slog.String("path", rel))
		}
		if ev.Op&fsnotify.Rename != 0 {
			scheduleReconcile()
		}
	}
}

// addDirs adds dir to the watcher, plus its subdirectories when the scan
// is recursive. Directories under the output dir are skipped.
func (s *Service) addDirs(w *fsnotify.Watcher, dir string) error {
	if !s.opts.Scan.Recursive {
		return w.Add(dir)
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != s.input.Root() && p == s.outputDir {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
