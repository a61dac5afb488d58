// Package watch triggers rebuilds when project files change.
//
// A Watcher follows the project tree recursively, collapses editor save
// bursts with a debounce window, and serialises rebuilds: changes that land
// while a rebuild is running mark it dirty and trigger exactly one follow-up
// once it finishes. Output, environment and hidden directories are excluded,
// with the manifest file itself as the one hidden exception.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/docsmith/docsmith/internal/log"
	"github.com/docsmith/docsmith/internal/manifest"
)

// DefaultDebounce is the quiet period after the last change before a rebuild
// fires.
const DefaultDebounce = 500 * time.Millisecond

// relevantOps are the event kinds that can change build input. Chmod is
// noise.
const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// Config wires a Watcher.
type Config struct {
	Root     string        // project directory, watched recursively
	Debounce time.Duration // quiet period; 0 means DefaultDebounce
	Exclude  []string      // slash-relative subtrees to skip (output root, venv)

	// OnChange runs on its own goroutine with the slash-relative paths that
	// changed. At most one invocation is in flight at a time.
	OnChange func(ctx context.Context, paths []string)
}

// Watcher debounces filesystem events into rebuild callbacks.
type Watcher struct {
	root     string
	debounce time.Duration
	exclude  []string
	onChange func(context.Context, []string)
	fs       *fsnotify.Watcher
	log      zerolog.Logger
}

// New builds a Watcher and registers the project tree with it. Call Run to
// start delivering callbacks; Run owns the watcher's lifetime.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("watch: no root directory")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("watch: no OnChange callback")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		root:     root,
		debounce: debounce,
		exclude:  slices.Clone(cfg.Exclude),
		onChange: cfg.OnChange,
		fs:       fsw,
		log:      log.WithComponent("watch"),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	return w, nil
}

// Run delivers change callbacks until ctx is cancelled. It always waits for
// an in-flight rebuild before returning, so callers never leak a goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	stopTimer(timer)
	defer stopTimer(timer)

	changed := make(map[string]struct{})
	building := false
	dirty := false
	done := make(chan struct{}, 1)

	w.log.Info().
		Str("event", "watch.start").
		Str("root", w.root).
		Dur("debounce", w.debounce).
		Msg("watching for changes")

	launch := func() {
		building = true
		paths := make([]string, 0, len(changed))
		for p := range changed {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		clear(changed)
		go func() {
			w.onChange(ctx, paths)
			done <- struct{}{}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			if building {
				<-done
			}
			w.log.Info().Str("event", "watch.stop").Msg("watcher stopped")
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op&relevantOps == 0 || w.ignored(ev.Name) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// New directories need their own watches; races with
					// deletion are tolerated.
					_ = w.addTree(ev.Name)
				}
			}
			rel := w.rel(ev.Name)
			changed[rel] = struct{}{}
			w.log.Debug().
				Str("event", "watch.change").
				Str("path", rel).
				Str("op", ev.Op.String()).
				Msg("file changed")
			if building {
				dirty = true
				continue
			}
			stopTimer(timer)
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Str("event", "watch.error").Msg("watcher error")

		case <-timer.C:
			if building {
				dirty = true
				continue
			}
			launch()

		case <-done:
			building = false
			if dirty || len(changed) > 0 {
				// Everything that arrived mid-build collapses into one
				// follow-up rebuild.
				dirty = false
				stopTimer(timer)
				timer.Reset(w.debounce)
			}
		}
	}
}

// addTree registers dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path) {
			return fs.SkipDir
		}
		return w.fs.Add(path)
	})
}

// ignored filters paths that never affect build input: anything under an
// excluded subtree, python and node caches, and hidden components. The
// manifest file is hidden by convention, so it is exempt as a final
// component.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, ex := range w.exclude {
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
	}
	parts := strings.Split(rel, "/")
	for i, part := range parts {
		if part == "__pycache__" || part == "node_modules" {
			return true
		}
		if !strings.HasPrefix(part, ".") {
			continue
		}
		if i < len(parts)-1 || !slices.Contains(manifest.Filenames, part) {
			return true
		}
	}
	return false
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
