package logs

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher evicts cached files when they are removed, renamed or recreated in
// the log directory.
type Watcher struct {
	watcher *fsnotify.Watcher
	source  *FileSource
}

func NewWatcher(source *FileSource) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(source.Dir()); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{watcher: w, source: source}, nil
}

func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create) {
				w.source.Evict(filepath.Base(ev.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Log directory watcher error", "dir", w.source.Dir(), "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
