package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/atlas-foundry/psml-go-sdk/internal/logger"
)

const watchDebounce = 100 * time.Millisecond

// fileWatcher reports changes to a fixed set of files. It watches their parent
// directories so editors that save through rename are still seen.
type fileWatcher struct {
	fsw     *fsnotify.Watcher
	log     *logger.Logger
	files   map[string]string // absolute path -> path as given
	pending map[string]struct{}
}

func newFileWatcher(paths []string, log *logger.Logger) (*fileWatcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("nothing to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &fileWatcher{
		fsw:     fsw,
		log:     log,
		files:   make(map[string]string, len(paths)),
		pending: make(map[string]struct{}),
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = p
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
		log.Debug("Watching directory", "path", dir)
	}
	return w, nil
}

// Run calls onChange with the path as given for every changed file, at most once per
// debounce window, until ctx is done.
func (w *fileWatcher) Run(ctx context.Context, onChange func(path string)) error {
	ticker := time.NewTicker(watchDebounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if _, tracked := w.files[event.Name]; !tracked {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.pending[event.Name] = struct{}{}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "error", err)

		case <-ticker.C:
			for abs := range w.pending {
				delete(w.pending, abs)
				w.log.Debug("File change detected", "path", abs)
				onChange(w.files[abs])
			}
		}
	}
}

func (w *fileWatcher) Close() error {
	return w.fsw.Close()
}
