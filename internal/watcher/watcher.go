// Package watcher reports file-system activity in a working copy as
// debounced change notifications.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 300 * time.Millisecond

// Directories whose contents never affect status output.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".cache":       true,
}

// Files under .git that signal an index, HEAD or ref change.
var gitSignals = map[string]bool{
	"index":       true,
	"HEAD":        true,
	"ORIG_HEAD":   true,
	"FETCH_HEAD":  true,
	"packed-refs": true,
}

type Watcher struct {
	root     string
	debounce time.Duration
	onChange func()
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	firing  sync.WaitGroup
}

func New(root string, debounce time.Duration, onChange func(), logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{root: root, debounce: debounce, onChange: onChange, logger: logger}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	defer w.stopTimer()

	if err := w.addRecursive(fw, w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	gitDir := filepath.Join(w.root, ".git")
	for _, dir := range []string{gitDir, filepath.Join(gitDir, "refs", "heads")} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if err := fw.Add(dir); err != nil {
				w.logger.Warn("watch git dir failed", "dir", dir, "error", err)
			}
		}
	}
	w.logger.Info("watching working copy", "root", w.root, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !w.inGitDir(ev.Name) {
					_ = w.addRecursive(fw, ev.Name)
				}
			}
			w.logger.Debug("fs event", "path", ev.Name, "op", ev.Op.String())
			w.schedule()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			w.logger.Debug("watch dir failed", "dir", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) inGitDir(p string) bool {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return false
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return first == ".git"
}

// relevant filters out noise: inside .git only index, HEAD and branch ref
// changes count; elsewhere anything outside skipped directories counts.
func (w *Watcher) relevant(p string) bool {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if parts[0] == ".git" {
		switch {
		case len(parts) == 2:
			return gitSignals[parts[1]]
		case len(parts) >= 3 && parts[1] == "refs":
			return !strings.HasSuffix(p, ".lock")
		default:
			return false
		}
	}
	for _, part := range parts[:len(parts)-1] {
		if skipDirs[part] {
			return false
		}
	}
	return !skipDirs[parts[len(parts)-1]]
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.firing.Add(1)
	w.mu.Unlock()

	defer w.firing.Done()
	w.onChange()
}

// stopTimer cancels the pending callback and waits for one already running,
// so onChange is never called after Run returns.
func (w *Watcher) stopTimer() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.firing.Wait()
}
