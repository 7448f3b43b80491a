package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of Write events most editors emit
// for a single save (temp file write + rename) into one reload.
const debounceWindow = 250 * time.Millisecond

// Watcher notifies a callback when a watched config file changes on
// disk, so an operator edit reloads instead of requiring a restart.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher starts watching the given paths immediately.
func NewWatcher(logger *slog.Logger, paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return &Watcher{watcher: fsw, logger: logger}, nil
}

// Run blocks, invoking onChange(path) at most once per debounceWindow
// per path, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) {
	pending := map[string]*time.Timer{}
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := ev.Name
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(debounceWindow, func() { onChange(path) })
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.warn("config watcher error", "error", err)
		}
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
