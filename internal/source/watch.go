package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports changes to a single file. It watches the parent directory so
// editors that replace the file through a rename are still seen.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
}

func NewFileWatcher(path string) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("error resolving %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("error watching %s: %w", filepath.Dir(abs), err)
	}

	return &FileWatcher{watcher: watcher, path: abs}, nil
}

// Run calls onChange for every create, write or rename of the file until ctx is done,
// then closes the watcher.
func (w *FileWatcher) Run(ctx context.Context, onChange func()) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				slog.Debug("shelter file changed", "path", w.path, "op", event.Op.String())
				onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file watch error", "path", w.path, "error", err)
		}
	}
}
