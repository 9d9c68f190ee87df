package keystore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange each time keys.toml is written or recreated, until
// ctx is done. The parent directory is watched so the file may not exist yet.
func (b *FileBackend) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating key cache watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		return fmt.Errorf("watching key cache dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(b.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("key cache watcher error: %w", err)
		}
	}
}
