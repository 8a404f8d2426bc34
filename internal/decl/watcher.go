package decl

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last change before
// reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher keeps the latest valid declaration of one file.
//
// Requests read Current once and use that Resource to the end, so a reload
// never changes a whitelist mid-request. A declaration that fails to load is
// logged and the previous one stays current.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onReload func(*Resource)

	current atomic.Pointer[Resource]
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger sets the logger. Default: slog.Default().
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithOnReload calls fn after each successful reload.
func WithOnReload(fn func(*Resource)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher loads path and returns a Watcher holding it. The initial load
// must succeed.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	r, err := Load(abs)
	if err != nil {
		return nil, err
	}
	w.current.Store(r)
	return w, nil
}

// Current returns the latest valid declaration.
func (w *Watcher) Current() *Resource {
	return w.current.Load()
}

// Reload loads the file now and swaps it in if it is valid.
func (w *Watcher) Reload() error {
	r, err := Load(w.path)
	if err != nil {
		return err
	}
	w.current.Store(r)
	if w.onReload != nil {
		w.onReload(r)
	}
	return nil
}

// Run watches the file until ctx is cancelled.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a new file into place are seen too.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.logger.Info("declaration watcher started",
		"path", w.path,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("declaration watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			w.logger.Debug("declaration changed", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				w.logger.Error("declaration reload failed, keeping previous", "error", err)
				continue
			}
			w.logger.Info("declaration reloaded", "table", w.Current().Table)

		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("declaration watcher error", "error", err)
		}
	}
}
