// Package filewatcher provides file system monitoring adapters.
package filewatcher

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. It watches
// the corpus directory so the caller can schedule a re-ingestion when
// documents change.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
}

// NewFSNotifyWatcher creates a watcher filtered to the given extensions.
func NewFSNotifyWatcher(extensions []string) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".txt", ".md", ".markdown"}
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: extensions,
	}, nil
}

// Watch starts monitoring the directory and emits events.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}

				var op ports.FileOperation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = ports.FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = ports.FileModified
				case event.Op&fsnotify.Remove == fsnotify.Remove:
					op = ports.FileDeleted
				default:
					continue
				}

				select {
				case events <- ports.FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
