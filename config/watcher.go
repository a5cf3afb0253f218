package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/capitan"

	"github.com/wuliuqii/mgs"
)

// Reloaded is emitted when a changed configuration file was decoded and
// validated.
var Reloaded = capitan.NewSignal(
	"mgs.config.reloaded",
	"Configuration file reloaded",
)

// KeyPath is the configuration file path.
var KeyPath = capitan.NewStringKey("path")

// FileWatcher watches a configuration file and emits a decoded Config on
// start and after every write. A rewrite that fails to decode or validate
// is reported as a fallback and the previous configuration is emitted
// again, so the producer reads degraded until the file is fixed.
type FileWatcher struct {
	path  string
	codec Codec
}

// NewFileWatcher creates a FileWatcher for path, choosing the codec by
// extension.
func NewFileWatcher(path string) *FileWatcher {
	return &FileWatcher{path: path, codec: CodecFor(path)}
}

// Factory returns a watcher constructor for mgs.Acquire.
func Factory(path string) func() mgs.Watcher[Config] {
	return func() mgs.Watcher[Config] { return NewFileWatcher(path) }
}

// Watch implements mgs.Watcher. The initial file must be valid.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temporary file are followed.
func (w *FileWatcher) Watch(ctx context.Context) (<-chan Config, error) {
	current, err := w.load()
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	out := make(chan Config)

	go func() {
		defer close(out)
		defer watcher.Close()

		select {
		case out <- current:
		case <-ctx.Done():
			return
		}

		target := filepath.Clean(w.path)
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				// Only reload on write or create events
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				next, err := w.load()
				if os.IsNotExist(err) {
					continue
				}
				current = mgs.Fallback(ctx, "config", next, err, current)
				if err == nil {
					capitan.Emit(ctx, Reloaded, KeyPath.Field(w.path))
				}

				select {
				case out <- current:
				case <-ctx.Done():
					return
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Continue watching despite errors
			}
		}
	}()

	return out, nil
}

func (w *FileWatcher) load() (Config, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Decode(data, w.codec)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", w.path, err)
	}
	return cfg, nil
}
