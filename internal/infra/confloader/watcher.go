package confloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a Watcher waits for a burst of writes to end.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports edits to a single file. Editors that save by renaming a
// temporary file over the original are handled by watching the directory.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *slog.Logger
	fs       *fsnotify.Watcher
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = log }
}

// WithDebounce sets the quiet period after the last event before the
// callback runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher starts watching path's directory. The caller must Run or
// Close the watcher.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("confloader: no file to watch")
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fs = fw
	return w, nil
}

// Run calls onChange after each burst of writes to the file and returns
// when ctx is done. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fs.Close()

	// pending is non-nil while a burst is being debounced.
	var pending <-chan time.Time

	w.log.Debug("watching config file", "path", w.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			pending = time.After(w.debounce)

		case <-pending:
			pending = nil
			w.log.Debug("config file changed", "path", w.path)
			onChange()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", "path", w.path, "error", err)
		}
	}
}

// Close stops a watcher that is not running.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
