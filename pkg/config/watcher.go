package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reload is the outcome of re-reading the watched file. Exactly one of
// Config and Err is set.
type Reload struct {
	Path   string
	Config *Config
	Err    error
}

// Watcher reloads a configuration file whenever it changes on disk.
type Watcher struct {
	watcher     *fsnotify.Watcher
	reloads     chan Reload
	watchedPath string
	debounce    time.Duration

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
	closed        bool
	closeMu       sync.RWMutex
}

const debounceDelay = 500 * time.Millisecond

// NewWatcher watches path. Editors often replace files rather than write
// them in place, so the parent directory is watched.
func NewWatcher(path string) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	slog.Debug("Started watching config file", "path", absPath)

	return &Watcher{
		watcher:     watcher,
		reloads:     make(chan Reload, 16),
		watchedPath: absPath,
		debounce:    debounceDelay,
	}, nil
}

// Reloads delivers one Reload per settled burst of changes. It is closed
// when ctx passed to Start is done or the watcher is closed.
func (w *Watcher) Reloads() <-chan Reload {
	return w.reloads
}

func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			eventPath, err := filepath.Abs(event.Name)
			if err != nil || eventPath != w.watchedPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			slog.Debug("Config file changed", "path", event.Name, "op", event.Op)
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

// scheduleReload re-reads the file once writes have settled.
func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		w.closeMu.RLock()
		defer w.closeMu.RUnlock()

		if w.closed {
			return
		}

		cfg, err := Load(w.watchedPath)
		r := Reload{Path: w.watchedPath, Config: cfg, Err: err}
		if err != nil {
			r.Config = nil
		}

		select {
		case w.reloads <- r:
		default:
			slog.Warn("Config reload channel full, skipping reload")
		}
	})
}

func (w *Watcher) Close() error {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	close(w.reloads)

	if err := w.watcher.Close(); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	return nil
}
