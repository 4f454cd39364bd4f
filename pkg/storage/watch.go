package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// selfWriteWindow is how long after our own Write/Delete a filesystem
// event on the same path is attributed to us rather than to an outsider.
const selfWriteWindow = time.Second

// Watch reports files under prefix that other processes create, modify
// or remove. It blocks until ctx is done.
func (s *LocalStorage) Watch(ctx context.Context, prefix string, fn func(Change)) error {
	dir := s.resolve(prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasSuffix(ev.Name, tmpSuffix) {
				continue
			}
			path, ok := s.rel(ev.Name)
			if !ok || s.ownChange(path) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				fn(Change{Path: path, Kind: ChangeRemoved})
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				fn(Change{Path: path, Kind: ChangeWritten})
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "storage watcher error", "prefix", prefix, "error", err)
		}
	}
}

func (s *LocalStorage) ownChange(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.touched[path]
	if !ok {
		return false
	}
	if time.Since(at) > selfWriteWindow {
		delete(s.touched, path)
		return false
	}
	return true
}
