// Package preview rebuilds the site when its sources change.
package preview

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 300 * time.Millisecond

// BuildFunc rebuilds the site.
type BuildFunc func(ctx context.Context) error

// Status is a snapshot of the watcher.
type Status struct {
	Watching  bool      `json:"watching"`
	Builds    int       `json:"builds"`
	LastBuild time.Time `json:"last_build,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher runs BuildFunc after files under its directories change.
type Watcher struct {
	dirs     []string
	build    BuildFunc
	debounce time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	status Status

	// built is signalled after every build; used in tests.
	built chan struct{}
}

// NewWatcher creates a Watcher over dirs. Missing directories are skipped.
func NewWatcher(dirs []string, build BuildFunc, debounce time.Duration, log *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		dirs:     dirs,
		build:    build,
		debounce: debounce,
		log:      log,
	}
}

// Status returns a snapshot of the watcher state.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Run watches until ctx is done. Builds run one at a time on the calling
// goroutine; changes that arrive during a build schedule one more build.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			w.log.Warn("not watching missing directory", "dir", dir)
			continue
		}
		if err := addRecursive(fw, dir); err != nil {
			return err
		}
	}

	w.setWatching(true)
	defer w.setWatching(false)
	w.log.Info("watching for changes", "dirs", w.dirs)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(fw, event.Name); err != nil {
						w.log.Warn("could not watch new directory", "dir", event.Name, "err", err)
					}
				}
			}
			if !relevant(event) {
				continue
			}
			w.log.Debug("change detected", "name", event.Name, "op", event.Op)
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "err", err)

		case <-timer.C:
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	w.log.Info("rebuilding")
	err := w.build(ctx)

	w.mu.Lock()
	w.status.Builds++
	w.status.LastBuild = time.Now()
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Error("rebuild failed", "err", err)
	}
	if w.built != nil {
		select {
		case w.built <- struct{}{}:
		default:
		}
	}
}

func (w *Watcher) setWatching(v bool) {
	w.mu.Lock()
	w.status.Watching = v
	w.mu.Unlock()
}

func addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// relevant filters out editor noise and metadata-only changes. Renames are
// followed by a create, so they are skipped too.
func relevant(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	switch {
	case base == ".DS_Store", base == "4913":
		return false
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"):
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) != 0
}
